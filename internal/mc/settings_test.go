package mc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeff-ws/temoa/internal/dataset"
)

func trialData() *dataset.Snapshot {
	s := dataset.New()
	s.Set("dog", dataset.KeyOf("1", "2"), 3.0)
	s.Set("dog", dataset.KeyOf("5", "6"), 4.0)
	s.Set("cat", dataset.KeyOf("a", "b"), 7.0)
	s.Set("cat", dataset.KeyOf("c", "d"), 8.0)
	return s
}

func parseOne(t *testing.T, line string) Row {
	t.Helper()
	s, err := ParseSettings(strings.NewReader(line), trialData())
	require.NoError(t, err)
	rows := s.Rows()
	require.Len(t, rows, 1)
	return rows[0]
}

func TestParseSettings_RowFields(t *testing.T) {
	row := parseOne(t, "1,dog,1|2,a,1.0,some good notes")
	assert.Equal(t, Row{
		Run: 1, Param: "dog", Indices: "1|2",
		Adjustment: AdjustAbsolute, Value: 1.0, Notes: "some good notes",
	}, row)
}

func TestParseSettings_StripsWhitespace(t *testing.T) {
	row := parseOne(t, "1  , dog,  1|2  , a , 1.0,")
	assert.Equal(t, Row{
		Run: 1, Param: "dog", Indices: "1|2",
		Adjustment: AdjustAbsolute, Value: 1.0, Notes: "",
	}, row)
}

func TestParseSettings_SkipsHeader(t *testing.T) {
	in := "run,param,index,mod,value,notes\n1,dog,1|2,a,1.0,\n"
	s, err := ParseSettings(strings.NewReader(in), trialData())
	require.NoError(t, err)
	assert.Len(t, s.Rows(), 1)
	assert.Equal(t, []int{1}, s.Runs())
}

func TestParseSettings_Malformed(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"non-integer run", "z,dog,1|2,a,1.0,"},
		{"empty index field", "1,dog,1||2,a,1.0,"},
		{"unknown adjustment", "2,dog,5|6,x,2.0,"},
		{"unknown param", "3,pig,4|5|7,r,2.0,"},
		{"non-numeric value", "1,dog,1|2,a,lots,"},
		{"missing fields", "1,dog,1|2,a"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSettings(strings.NewReader(tc.line), trialData())
			assert.Error(t, err)
		})
	}
}

func TestRow_Tweaks_Fanout(t *testing.T) {
	cases := []struct {
		line string
		want int
	}{
		{"1,dog,1|2,a,1.0,some good notes", 1},
		{"1  , dog,  1|2  , a , 1.0,", 1},
		{"22,cat,c|d/e/f|9/10,r,2,", 6},
	}
	for _, tc := range cases {
		assert.Len(t, parseOne(t, tc.line).Tweaks(), tc.want, "row %q", tc.line)
	}
}

func TestRow_Tweaks_AlternationOrder(t *testing.T) {
	tweaks := parseOne(t, "22,cat,c|d/e|9/10,r,2,").Tweaks()
	var got []dataset.Key
	for _, tw := range tweaks {
		got = append(got, tw.Index)
	}
	want := []dataset.Key{
		dataset.KeyOf("c", "d", "9"),
		dataset.KeyOf("c", "d", "10"),
		dataset.KeyOf("c", "e", "9"),
		dataset.KeyOf("c", "e", "10"),
	}
	assert.Equal(t, want, got, "rightmost position varies fastest")
}

func TestRow_Tweaks_StripsParens(t *testing.T) {
	tweaks := parseOne(t, "1,dog,(1|2),a,1.0,").Tweaks()
	require.Len(t, tweaks, 1)
	assert.Equal(t, dataset.KeyOf("1", "2"), tweaks[0].Index)
}

func TestParseSettings_GroupsRowsByRun(t *testing.T) {
	in := "1,dog,1|2,a,1.0,\n" +
		"2,cat,a|b,s,9.0,\n" +
		"1,dog,5|6,r,0.5,\n"
	s, err := ParseSettings(strings.NewReader(in), trialData())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, s.Runs())
	assert.Len(t, s.RunTweaks(1), 2)
	assert.Len(t, s.RunTweaks(2), 1)
}
