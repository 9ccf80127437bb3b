package titration

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/CK6170/Oxyfit-go/models"
	"github.com/CK6170/Oxyfit-go/seawater"
)

type GlassType string

const (
	Borosilicate GlassType = "borosilicate"
	Soft         GlassType = "soft"
)

var expansion = map[GlassType]float64{
	Borosilicate: 0.00001,
	Soft:         0.000025,
}

// ExpansionCoefficient returns the cubical thermal expansion of the glass per degC.
func ExpansionCoefficient(g GlassType) (float64, error) {
	c, ok := expansion[g]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownGlass, g)
	}
	return c, nil
}

// ParseFlasks reads a flask calibration table. Comment lines (#) and the header
// line containing "Volume" are skipped.
func ParseFlasks(r io.Reader) (models.FlaskTable, error) {
	table := make(models.FlaskTable)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") || strings.Contains(text, "Volume") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 2 {
			return nil, &RecordError{Line: line, Text: text, Err: fmt.Errorf("%w: want flask id and volume", ErrMalformedRecord)}
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil || id <= 0 {
			return nil, &RecordError{Line: line, Text: text, Err: fmt.Errorf("%w: flask id %q", ErrMalformedRecord, fields[0])}
		}
		vol, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, &RecordError{Line: line, Text: text, Err: fmt.Errorf("%w: volume %q", ErrMalformedRecord, fields[1])}
		}
		table[id] = vol
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read flasks: %w", err)
	}
	return table, nil
}

func LoadFlasks(path string) (models.FlaskTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	table, err := ParseFlasks(f)
	if err != nil {
		return nil, withSource(err, path)
	}
	return table, nil
}

// FlaskVolume returns the volume of flask id at the draw temperature.
func FlaskVolume(id int, table models.FlaskTable, drawTemperature float64, glass GlassType) (float64, error) {
	coef, err := ExpansionCoefficient(glass)
	if err != nil {
		return 0, err
	}
	vol, ok := table[id]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownFlask, id)
	}
	return vol * (1.0 + coef*(drawTemperature-seawater.Standard.ReferenceTemperature)), nil
}

func withSource(err error, path string) error {
	if re, ok := err.(*RecordError); ok {
		re.Source = path
		return re
	}
	return fmt.Errorf("%s: %w", path, err)
}
