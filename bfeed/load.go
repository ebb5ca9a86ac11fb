package bfeed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrBadRecord is returned when a row of the data file cannot be parsed.
var ErrBadRecord = errors.New("bad record")

// Columns lists the variables of the data file in their published order.
var Columns = []string{"duration", "delta", "race", "poverty", "smoke",
	"alcohol", "agemth", "ybirth", "yschool", "pc3mth"}

// Load reads the data from a CSV file.
func Load(path string) (*Data, error) {

	fid, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loading bfeed data: %w", err)
	}
	defer fid.Close()

	d, err := Read(fid)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	return d, nil
}

// Read parses CSV data with a header row naming the columns in Columns,
// in any order.  An additional leading column of row names, as written
// by R, is ignored.  Categorical values may be given either as the
// published numeric codes (race 1, 2, 3 for white, black, other; 1 for
// yes and 0 for no) or as labels.  Two-digit birth years are taken to
// be in the 1900s.
func Read(r io.Reader) (*Data, error) {

	rdr := csv.NewReader(r)
	rdr.TrimLeadingSpace = true

	head, err := rdr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	pos := make(map[string]int)
	for j, h := range head {
		pos[strings.ToLower(strings.Trim(h, `" `))] = j
	}
	for _, c := range Columns {
		if _, ok := pos[c]; !ok {
			return nil, fmt.Errorf("column %q not found in header", c)
		}
	}

	var obs []Observation
	for line := 2; ; line++ {
		rec, err := rdr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: %v", line, ErrBadRecord, err)
		}

		o, err := parseRecord(rec, pos)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: %v", line, ErrBadRecord, err)
		}
		obs = append(obs, o)
	}

	return &Data{obs: obs}, nil
}

func parseRecord(rec []string, pos map[string]int) (Observation, error) {

	var o Observation
	var err error

	get := func(name string) string {
		return strings.TrimSpace(rec[pos[name]])
	}

	num := func(name string) float64 {
		if err != nil {
			return 0
		}
		var x float64
		x, err = strconv.ParseFloat(get(name), 64)
		if err != nil {
			err = fmt.Errorf("%s: %v", name, err)
		}
		return x
	}

	yesno := func(name string) bool {
		if err != nil {
			return false
		}
		switch strings.ToLower(get(name)) {
		case "1", "yes":
			return true
		case "0", "no":
			return false
		}
		err = fmt.Errorf("%s: unknown value %q", name, get(name))
		return false
	}

	o.Duration = num("duration")
	delta := num("delta")
	o.Poverty = yesno("poverty")
	o.Smoke = yesno("smoke")
	o.Alcohol = yesno("alcohol")
	o.AgeMth = num("agemth")
	o.YBirth = num("ybirth")
	o.YSchool = num("yschool")
	o.PC3Mth = yesno("pc3mth")
	if err != nil {
		return o, err
	}

	switch strings.ToLower(get("race")) {
	case "1", "white":
		o.Race = White
	case "2", "black":
		o.Race = Black
	case "3", "other":
		o.Race = Other
	default:
		return o, fmt.Errorf("race: unknown value %q", get("race"))
	}

	if !(o.Duration > 0) {
		return o, fmt.Errorf("duration must be positive, found %v", o.Duration)
	}
	if delta != 0 && delta != 1 {
		return o, fmt.Errorf("delta must be 0 or 1, found %v", delta)
	}
	o.Delta = int(delta)

	if o.YBirth < 100 {
		o.YBirth += 1900
	}

	return o, nil
}
