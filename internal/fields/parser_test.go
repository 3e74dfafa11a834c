package fields

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLicense = `REPUBLIC OF THE PHILIPPINES
DEPARTMENT OF TRANSPORTATION
LAND TRANSPORTATION OFFICE
NON-PROFESSIONAL DRIVER'S LICENSE
LAST NAME, FIRST NAME, MIDDLE NAME
DELA CRUZ, JUAN
NATIONALITY SEX DATE OF BIRTH
PHL M 1999/01/15
ADDRESS
123 RIZAL ST, QUEZON CITY
LICENSE NO. AGENCY CODE
N01-23-456789 N25
EXPIRATION DATE
2030-05-12`

func date(y int, m time.Month, d int) Date { return Date{Year: y, Month: m, Day: d} }

func TestParse_SampleLicense(t *testing.T) {
	p := Parse(sampleLicense)

	assert.False(t, p.Restricted)
	assert.Equal(t, "DELA CRUZ, JUAN", p.NameCandidate)
	assert.Equal(t, NameSourceMarker, p.NameSource)
	require.NotNil(t, p.Expiration)
	assert.Equal(t, date(2030, time.May, 12), *p.Expiration)
	assert.Equal(t, []Date{date(1999, time.January, 15)}, p.BirthDates)
	assert.GreaterOrEqual(t, p.KeywordCount, 10)
	assert.True(t, p.DocumentDetected())
	assert.True(t, p.HasName())
}

func TestParse_RestrictedShortCircuits(t *testing.T) {
	p := Parse("REPUBLIC OF THE PHILIPPINES\nSTUDENT PERMIT\nDELA CRUZ, JUAN\n2026/01/01")

	assert.True(t, p.Restricted)
	assert.Equal(t, "STUDENT PERMIT", p.RestrictedTerm)
	assert.Empty(t, p.NameCandidate)
	assert.Equal(t, NameSourceNone, p.NameSource)
	assert.Nil(t, p.Expiration)
	assert.Equal(t, 2, p.KeywordCount)
}

func TestParse_Dates(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		want  *Date
		birth int
	}{
		{
			name:  "birth label excludes the date",
			text:  "DATE OF BIRTH: 1999/01/15\nAGENCY CODE N25 CONDITIONS NONE\nEXPIRES 2030/05/12",
			want:  &Date{2030, time.May, 12},
			birth: 1,
		},
		{
			name: "latest date wins",
			text: "ISSUED 2020.05.12\nVALID UNTIL 2025-05-12\nREPRINT 2021/01/01",
			want: &Date{2025, time.May, 12},
		},
		{
			name:  "repeated birth date value is not the expiration",
			text:  "DOB 2031/02/03 ................................ 2031/02/03 and 2029/12/31",
			want:  &Date{2029, time.December, 31},
			birth: 1,
		},
		{
			name: "invalid calendar dates ignored",
			text: "2025/15/50 2024/02/30",
		},
		{
			name: "digits glued to other numbers are not dates",
			text: "N0120250512999",
		},
		{
			name:  "only a birth date",
			text:  "BIRTH 1990/10/10",
			birth: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Parse(tt.text)
			assert.Equal(t, tt.want, p.Expiration)
			assert.Len(t, p.BirthDates, tt.birth)
		})
	}
}

func TestParse_Names(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		source NameSource
	}{
		{
			name:   "compact marker",
			text:   "LNFN,MN\nREYES, ANA MARIE\nNATIONALITY",
			want:   "REYES, ANA MARIE",
			source: NameSourceMarker,
		},
		{
			name:   "token marker",
			text:   "LN FN MN\nSantos, Maria",
			want:   "SANTOS, MARIA",
			source: NameSourceMarker,
		},
		{
			name:   "no marker uses the pattern",
			text:   "LICENSE\nGARCIA, PEDRO\nSOMETHING ELSE",
			want:   "GARCIA, PEDRO",
			source: NameSourcePattern,
		},
		{
			name:   "marker followed by garbage falls back to scoring",
			text:   "LAST NAME FIRST NAME\n~~~~\nBAUTISTA, JOSE",
			want:   "BAUTISTA, JOSE",
			source: NameSourcePattern,
		},
		{
			name:   "address lines lose to names",
			text:   "RIZAL AVE, MANILA\nTORRES, LUIS",
			want:   "TORRES, LUIS",
			source: NameSourcePattern,
		},
		{
			name:   "address only",
			text:   "BRGY SAN ISIDRO, CITY OF MAKATI",
			source: NameSourceNone,
		},
		{
			name:   "digits disqualify",
			text:   "DELA CRUZ, JUAN 3RD",
			source: NameSourceNone,
		},
		{
			name:   "two commas disqualify",
			text:   "DELA CRUZ, JUAN, PEREZ",
			source: NameSourceNone,
		},
		{
			name:   "first candidate wins ties",
			text:   "LOPEZ, CARLO\nMENDOZA, RICA",
			want:   "LOPEZ, CARLO",
			source: NameSourcePattern,
		},
		{
			name:   "empty",
			text:   "",
			source: NameSourceNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Parse(tt.text)
			assert.Equal(t, tt.want, p.NameCandidate)
			assert.Equal(t, tt.source, p.NameSource)
		})
	}
}

func TestLines(t *testing.T) {
	assert.Equal(t, []string{"A", "B C"}, Lines("  A \r\n\n B C\n   "))
	assert.Empty(t, Lines(""))
}

func TestIsMarkerLine(t *testing.T) {
	assert.True(t, isMarkerLine("Last Name, First Name, Middle Name"))
	assert.True(t, isMarkerLine("LN, FN. MN"))
	assert.True(t, isMarkerLine("LNFMMH"))
	assert.False(t, isMarkerLine("LAST NAME"))
	assert.False(t, isMarkerLine("DELA CRUZ, JUAN"))
}

func TestDate_JSON(t *testing.T) {
	d := date(2030, time.May, 12)
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `"2030-05-12"`, string(b))

	var back Date
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, d, back)

	require.Error(t, json.Unmarshal([]byte(`"2030-13-01"`), &back))

	y, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "2030-05-12", y)
}

func TestDate_Compare(t *testing.T) {
	a := date(2024, time.January, 1)
	b := date(2024, time.January, 2)
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.False(t, a.After(a))
	assert.Equal(t, a, DateOf(time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)))
}
