package source

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// flexDate accepts the date encodings seen in upstream payloads: a YYYYMMDD
// integer, an ISO string, or null/0 for "unknown".
type flexDate struct {
	time.Time
}

func (d *flexDate) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" || s == "0" {
		d.Time = time.Time{}
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if len(s) != 8 {
			d.Time = time.Time{}
			return nil
		}
		d.Time = time.Date(n/10000, time.Month(n/100%100), n%100, 0, 0, 0, 0, time.UTC)
		return nil
	}
	t, err := time.Parse("2006-01-02", s[:min(len(s), 10)])
	if err != nil {
		// An unparseable date is treated as unknown, not as a failure:
		// the detector will classify the document as changed.
		d.Time = time.Time{}
		return nil
	}
	d.Time = t
	return nil
}

// flexInt accepts numbers that upstream sometimes serializes as strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(n)
	return nil
}

// flexIntList accepts a single integer or a pipe-separated string ("95|6|168").
type flexIntList []int

func (f *flexIntList) UnmarshalJSON(data []byte) error {
	*f = nil
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*f = []int{n}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if v, err := strconv.Atoi(part); err == nil {
			*f = append(*f, v)
		}
	}
	return nil
}
