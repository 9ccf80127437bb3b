package titration

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/CK6170/Oxyfit-go/models"
)

const (
	abortMarker    = "ABORT"
	emptyBottle    = 99
	headerFields   = 6
	minRecordField = 7
)

// ParseRun reads a titration log: a six-field standardization header followed by
// one line per bottle. Aborted titrations and bottle slots 99 or above 36 are dropped.
func ParseRun(r io.Reader) (*models.TitrationRun, error) {
	run := &models.TitrationRun{}
	sc := bufio.NewScanner(r)
	line := 0
	haveHeader := false
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if !haveHeader {
			h, err := parseHeader(fields)
			if err != nil {
				return nil, &RecordError{Line: line, Text: text, Err: err}
			}
			run.Header = h
			haveHeader = true
			continue
		}
		if strings.Contains(fields[len(fields)-1], abortMarker) {
			continue
		}
		rec, err := parseRecord(fields)
		if err != nil {
			return nil, &RecordError{Line: line, Text: text, Err: err}
		}
		if rec.Bottle == emptyBottle || rec.Bottle > models.MaxBottles {
			continue
		}
		rec.Line = line
		run.Records = append(run.Records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read titration log: %w", err)
	}
	if !haveHeader {
		return nil, ErrMissingHeader
	}
	return run, nil
}

func LoadRun(path string) (*models.TitrationRun, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	run, err := ParseRun(f)
	if err != nil {
		return nil, withSource(err, path)
	}
	return run, nil
}

func parseHeader(fields []string) (models.TitrationHeader, error) {
	if len(fields) != headerFields {
		return models.TitrationHeader{}, fmt.Errorf("%w: header has %d fields, want %d", ErrMalformedRecord, len(fields), headerFields)
	}
	var v [headerFields]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return models.TitrationHeader{}, fmt.Errorf("%w: header field %d %q", ErrMalformedRecord, i+1, f)
		}
		v[i] = x
	}
	return models.TitrationHeader{
		TitrantVolume:      v[0],
		Blank:              v[1],
		IodateNormality:    v[2],
		IodateVolume:       v[3],
		IodateTemperature:  v[4],
		TitrantTemperature: v[5],
	}, nil
}

func parseRecord(fields []string) (models.TitrationRecord, error) {
	var rec models.TitrationRecord
	if len(fields) < minRecordField {
		return rec, fmt.Errorf("%w: %d fields, want at least %d", ErrMalformedRecord, len(fields), minRecordField)
	}
	ints := []*int{&rec.Station, &rec.Cast, &rec.Bottle, &rec.Flask}
	for i, dst := range ints {
		x, err := strconv.Atoi(fields[i])
		if err != nil {
			return rec, fmt.Errorf("%w: field %d %q is not an integer", ErrMalformedRecord, i+1, fields[i])
		}
		*dst = x
	}
	floats := []*float64{&rec.TitrantVolume, &rec.TitrantTemperature, &rec.DrawTemperature}
	for i, dst := range floats {
		f := fields[len(ints)+i]
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return rec, fmt.Errorf("%w: field %d %q is not a number", ErrMalformedRecord, len(ints)+i+1, f)
		}
		*dst = x
	}
	if rec.Bottle < 1 {
		return rec, fmt.Errorf("%w: bottle %d", ErrMalformedRecord, rec.Bottle)
	}
	if len(fields) > minRecordField {
		rec.Status = fields[len(fields)-1]
	}
	return rec, nil
}
