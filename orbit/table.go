package orbit

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/richielo/basicFusion/errkind"
)

// RecordSize is the on-disk size of one orbit record: thirteen
// little-endian uint32 values.
const RecordSize = 13 * 4

// Record is one orbit's UTC start and end time.
type Record struct {
	StartYear, StartMonth, StartDay     uint32
	StartHour, StartMinute, StartSecond uint32
	EndYear, EndMonth, EndDay           uint32
	EndHour, EndMinute, EndSecond       uint32
	Number                              uint32
}

// StartTime returns the orbit start in UTC.
func (r Record) StartTime() time.Time {
	return time.Date(int(r.StartYear), time.Month(r.StartMonth), int(r.StartDay),
		int(r.StartHour), int(r.StartMinute), int(r.StartSecond), 0, time.UTC)
}

// EndTime returns the orbit end in UTC.
func (r Record) EndTime() time.Time {
	return time.Date(int(r.EndYear), time.Month(r.EndMonth), int(r.EndDay),
		int(r.EndHour), int(r.EndMinute), int(r.EndSecond), 0, time.UTC)
}

// Window converts the record to a window in the given epoch's unit.
func (r Record) Window(e Epoch) (Window, error) {
	conv, ok := epochs[e]
	if !ok {
		return Window{}, errkind.Errorf(errkind.InvalidConfig, "orbit window", "", "unknown epoch %q", e)
	}
	return Window{Start: conv(r.StartTime()), End: conv(r.EndTime())}, nil
}

func (r Record) String() string {
	return fmt.Sprintf("orbit %d: %s to %s", r.Number,
		r.StartTime().Format(time.RFC3339), r.EndTime().Format(time.RFC3339))
}

// Epoch names a time unit used by source time series.
type Epoch string

const (
	// Julian is a Julian date in days.
	Julian Epoch = "julian"
	// TAI93 is seconds since 1993-01-01T00:00:00Z, leap seconds excluded.
	TAI93 Epoch = "tai93"
)

var tai93Origin = time.Date(1993, 1, 1, 0, 0, 0, 0, time.UTC)

var epochs = map[Epoch]func(time.Time) float64{
	Julian: func(t time.Time) float64 {
		return float64(t.Unix())/86400 + 2440587.5
	},
	TAI93: func(t time.Time) float64 {
		return t.Sub(tai93Origin).Seconds()
	},
}

// ParseEpoch validates an epoch name.
func ParseEpoch(s string) (Epoch, error) {
	e := Epoch(s)
	if _, ok := epochs[e]; !ok {
		return "", errkind.Errorf(errkind.InvalidConfig, "parse epoch", "", "unknown epoch %q", s)
	}
	return e, nil
}

// Table is the list of known orbits.
type Table []Record

// ReadTable decodes consecutive records until EOF. A trailing partial
// record is an error.
func ReadTable(r io.Reader) (Table, error) {
	const op = "read orbit table"
	var t Table
	buf := make([]byte, RecordSize)
	for {
		n, err := io.ReadFull(r, buf)
		if err == io.EOF {
			return t, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errkind.Errorf(errkind.InvalidInput, op, "", "trailing %d bytes after record %d", n, len(t))
		}
		if err != nil {
			return nil, errkind.E(errkind.IOError, op, "", err)
		}
		var rec Record
		if _, err := binary.Decode(buf, binary.LittleEndian, &rec); err != nil {
			return nil, errkind.E(errkind.InvalidInput, op, "", err)
		}
		t = append(t, rec)
	}
}

// Encode writes the table in the format ReadTable reads.
func (t Table) Encode(w io.Writer) error {
	for _, rec := range t {
		if err := binary.Write(w, binary.LittleEndian, rec); err != nil {
			return errkind.E(errkind.IOError, "write orbit table", "", err)
		}
	}
	return nil
}

// Lookup returns the record with the given orbit number.
func (t Table) Lookup(number uint32) (Record, error) {
	for _, rec := range t {
		if rec.Number == number {
			return rec, nil
		}
	}
	return Record{}, errkind.Errorf(errkind.NotFound, "lookup orbit", "", "orbit %d not in table", number)
}

// RecordFromTimes builds a record from UTC times, truncated to seconds.
func RecordFromTimes(number uint32, start, end time.Time) Record {
	start, end = start.UTC(), end.UTC()
	return Record{
		StartYear: uint32(start.Year()), StartMonth: uint32(start.Month()), StartDay: uint32(start.Day()),
		StartHour: uint32(start.Hour()), StartMinute: uint32(start.Minute()), StartSecond: uint32(start.Second()),
		EndYear: uint32(end.Year()), EndMonth: uint32(end.Month()), EndDay: uint32(end.Day()),
		EndHour: uint32(end.Hour()), EndMinute: uint32(end.Minute()), EndSecond: uint32(end.Second()),
		Number: number,
	}
}
