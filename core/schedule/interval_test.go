package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    ClockTime
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "07:30", want: NewClockTime(7, 30)},
		{in: "23:59", want: NewClockTime(23, 59)},
		{in: "10:30:00", want: NewClockTime(10, 30)},
		{in: " 9:05 ", want: NewClockTime(9, 5)},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "12", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseClock() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseClock() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClockTime_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		At ClockTime `json:"at"`
	}{NewClockTime(9, 5)})
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	assert.JSONEq(t, `{"at": "09:05"}`, string(data))

	var got struct {
		At ClockTime `json:"at"`
	}
	if err = json.Unmarshal([]byte(`{"at": "18:45"}`), &got); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if got.At != NewClockTime(18, 45) {
		t.Errorf("json.Unmarshal() = %v, want 18:45", got.At)
	}
	if err = json.Unmarshal([]byte(`{"at": 1845}`), &got); err == nil {
		t.Error("json.Unmarshal() expected an error for a number")
	}
}

func TestClockTime_Scan(t *testing.T) {
	tests := []struct {
		name    string
		src     interface{}
		want    ClockTime
		wantErr bool
	}{
		{name: "bytes", src: []byte("10:30:00"), want: NewClockTime(10, 30)},
		{name: "string", src: "08:00:00", want: NewClockTime(8, 0)},
		{name: "time", src: time.Date(0, 1, 1, 14, 15, 0, 0, time.UTC), want: NewClockTime(14, 15)},
		{name: "int", src: 42, wantErr: true},
		{name: "garbage", src: "later", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ClockTime
			if err := got.Scan(tt.src); (err != nil) != tt.wantErr {
				t.Fatalf("Scan() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Scan() = %v, want %v", got, tt.want)
			}
		})
	}

	v, err := NewClockTime(7, 5).Value()
	if err != nil || v != "07:05:00" {
		t.Errorf("Value() = %v, %v; want 07:05:00", v, err)
	}
}

func TestInterval_Overlaps(t *testing.T) {
	iv := func(start, end string) Interval {
		return Interval{Start: MustParseClock(start), End: MustParseClock(end)}
	}
	booked := iv("10:00", "12:00")

	tests := []struct {
		name  string
		other Interval
		want  bool
	}{
		{name: "starts inside", other: iv("10:30", "11:30"), want: true},
		{name: "covers", other: iv("09:00", "13:00"), want: true},
		{name: "overlaps start", other: iv("09:00", "10:01"), want: true},
		{name: "overlaps end", other: iv("11:59", "13:00"), want: true},
		{name: "same", other: iv("10:00", "12:00"), want: true},
		{name: "touches end", other: iv("12:00", "13:00"), want: false},
		{name: "touches start", other: iv("08:00", "10:00"), want: false},
		{name: "before", other: iv("07:00", "08:00"), want: false},
		{name: "after", other: iv("14:00", "15:00"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := booked.Overlaps(tt.other); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			if got := tt.other.Overlaps(booked); got != tt.want {
				t.Errorf("Overlaps() is not symmetric: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPartition(t *testing.T) {
	window := Interval{Start: NewClockTime(8, 0), End: NewClockTime(11, 30)}

	got := Partition(window, 60)
	want := []Interval{
		{Start: NewClockTime(8, 0), End: NewClockTime(9, 0)},
		{Start: NewClockTime(9, 0), End: NewClockTime(10, 0)},
		{Start: NewClockTime(10, 0), End: NewClockTime(11, 0)},
	}
	assert.Equal(t, want, got)

	assert.Len(t, Partition(window, 30), 7)
	assert.Nil(t, Partition(window, 0))
	assert.Nil(t, Partition(Interval{Start: NewClockTime(9, 0), End: NewClockTime(8, 0)}, 30))
}

func TestQueryFilter_Matches(t *testing.T) {
	day := time.Monday
	iv := Interval{Start: NewClockTime(10, 0), End: NewClockTime(12, 0)}
	a := Assignment{RoomID: 1, SessionID: 2, TutorID: 3, Day: day, Start: iv.Start, End: iv.End, Active: true}
	key := a.Key()
	other := AssignmentKey{RoomID: 9, SessionID: 9, TutorID: 9}
	tuesday := time.Tuesday
	later := Interval{Start: NewClockTime(12, 0), End: NewClockTime(13, 0)}

	tests := []struct {
		name   string
		filter QueryFilter
		want   bool
	}{
		{name: "empty", filter: QueryFilter{}, want: true},
		{name: "room", filter: QueryFilter{RoomID: 1, Day: &day}, want: true},
		{name: "other room", filter: QueryFilter{RoomID: 2}, want: false},
		{name: "tutor", filter: QueryFilter{TutorID: 3, ActiveOnly: true}, want: true},
		{name: "other day", filter: QueryFilter{Day: &tuesday}, want: false},
		{name: "overlapping", filter: QueryFilter{Overlapping: &iv}, want: true},
		{name: "touching", filter: QueryFilter{Overlapping: &later}, want: false},
		{name: "excluded", filter: QueryFilter{Exclude: &key}, want: false},
		{name: "other excluded", filter: QueryFilter{Exclude: &other}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(a); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}

	a.Active = false
	if (QueryFilter{ActiveOnly: true}).Matches(a) {
		t.Error("Matches() kept an inactive assignment")
	}
}
