package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mida-project/mission-cli/internal/model"
)

func TestNameKey_Uppercase(t *testing.T) {
	assert.Equal(t, "EUTM MALI", NameKey("eutm Mali"))
}

func TestNameKey_BoilerplatePrefix(t *testing.T) {
	assert.Equal(t, "EUTM MALI", NameKey("Missione EUTM Mali"))
	assert.Equal(t, "EUTM MALI", NameKey("Operazione EUTM Mali"))
	assert.Equal(t, "IRINI", NameKey("Operation IRINI"))
	assert.Equal(t, "IRINI", NameKey("Mission IRINI"))
}

func TestNameKey_AccentFolding(t *testing.T) {
	assert.Equal(t, NameKey("EULEX Kosovo"), NameKey("EULEX Kosovò"))
	assert.Equal(t, "COTE DIVOIRE", NameKey("Côte d'Ivoire"))
}

func TestNameKey_Punctuation(t *testing.T) {
	assert.Equal(t, "EUNAVFOR MED", NameKey("EUNAVFOR-MED"))
	assert.Equal(t, "SUPPORT AND TRAIN", NameKey("Support & Train"))
	assert.Equal(t, "KFOR JOINT ENTERPRISE", NameKey("KFOR (Joint Enterprise)"))
}

func TestNameKey_CollapseSpaces(t *testing.T) {
	assert.Equal(t, "EUTM MALI", NameKey("  EUTM   Mali  "))
}

func TestCleanName_PreservesCase(t *testing.T) {
	assert.Equal(t, "EUTM Mali", CleanName("Missione  EUTM Mali"))
}

func TestParseCountries(t *testing.T) {
	assert.Equal(t, []string{"MALI", "NIGER"}, ParseCountries("Mali, Niger"))
	assert.Equal(t, []string{"MALI", "NIGER"}, ParseCountries("mali; niger"))
	assert.Equal(t, []string{"MALI"}, ParseCountries("Mali / mali"))
	assert.Nil(t, ParseCountries("   "))
}

func TestParsePersonnel(t *testing.T) {
	n, ok := ParsePersonnel("200")
	require.True(t, ok)
	assert.Equal(t, 200, n)

	n, ok = ParsePersonnel("circa 1.100 militari")
	require.True(t, ok)
	assert.Equal(t, 1100, n)

	_, ok = ParsePersonnel("tra 200 e 400")
	assert.False(t, ok)

	_, ok = ParsePersonnel("non disponibile")
	assert.False(t, ok)
}

func TestParseAmount_Italian(t *testing.T) {
	v, ok := ParseAmount("1.234,56")
	require.True(t, ok)
	assert.InDelta(t, 1234.56, v, 0.001)

	v, ok = ParseAmount("€ 45.000.000")
	require.True(t, ok)
	assert.InDelta(t, 45000000, v, 0.001)
}

func TestParseAmount_English(t *testing.T) {
	v, ok := ParseAmount("1,234.56")
	require.True(t, ok)
	assert.InDelta(t, 1234.56, v, 0.001)

	v, ok = ParseAmount("45000000")
	require.True(t, ok)
	assert.InDelta(t, 45000000, v, 0.001)
}

func TestParseAmount_Invalid(t *testing.T) {
	_, ok := ParseAmount("n/d")
	assert.False(t, ok)
	_, ok = ParseAmount("")
	assert.False(t, ok)
}

func TestNormalize_ItalianFields(t *testing.T) {
	n := New(NewRegistry(nil))

	rec, err := n.Normalize(model.RawRecord{
		SourceID:  "camera",
		FetchedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Fields: map[string]string{
			"nome_missione":    "Missione EUTM Mali",
			"paese":            "Mali",
			"data_inizio":      "18/02/2013",
			"personale_totale": "circa 200 militari",
			"costo_totale":     "45.000.000,00",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "EUTM Mali", rec.Name)
	assert.Equal(t, "EUTM MALI", rec.NameKey)
	assert.Equal(t, []string{"MALI"}, rec.Countries)
	require.True(t, rec.StartDate.Known)
	assert.Equal(t, time.Date(2013, 2, 18, 0, 0, 0, 0, time.UTC), rec.StartDate.Time)
	require.NotNil(t, rec.Personnel)
	assert.Equal(t, 200, *rec.Personnel)
	require.NotNil(t, rec.Cost)
	assert.InDelta(t, 45000000.0, *rec.Cost, 0.01)
	assert.True(t, rec.Validated)
}

func TestNormalize_NoName(t *testing.T) {
	n := New(NewRegistry(nil))

	_, err := n.Normalize(model.RawRecord{
		SourceID: "camera",
		Fields:   map[string]string{"paese": "Mali"},
	})
	require.Error(t, err)
	var nerr *NormalizationError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "camera", nerr.SourceID)
}

func TestNormalize_InvertedDates(t *testing.T) {
	n := New(NewRegistry(nil))

	rec, err := n.Normalize(model.RawRecord{
		SourceID: "camera",
		Fields: map[string]string{
			"nome_missione": "EUTM Mali",
			"data_inizio":   "2024-01-01",
			"data_fine":     "2013-01-01",
		},
	})
	require.NoError(t, err)
	assert.True(t, rec.StartDate.Known)
	assert.False(t, rec.EndDate.Known)
	require.Len(t, rec.Notes, 1)
	assert.Contains(t, rec.Notes[0], "end_date")
}

func TestNormalize_UnparseableNumericsKeptAsNotes(t *testing.T) {
	n := New(NewRegistry(nil))

	rec, err := n.Normalize(model.RawRecord{
		SourceID: "camera",
		Fields: map[string]string{
			"nome_missione":    "EUTM Mali",
			"personale_totale": "tra 200 e 400",
			"costo_totale":     "non disponibile",
		},
	})
	require.NoError(t, err)
	assert.Nil(t, rec.Personnel)
	assert.Nil(t, rec.Cost)
	require.Len(t, rec.Notes, 2)
	assert.Contains(t, rec.Notes[0], "tra 200 e 400")
	assert.Contains(t, rec.Notes[1], "non disponibile")
}

func TestNormalize_NotValidatedWithoutCountry(t *testing.T) {
	n := New(NewRegistry(nil))

	rec, err := n.Normalize(model.RawRecord{
		SourceID: "camera",
		Fields: map[string]string{
			"nome_missione": "EUTM Mali",
			"data_inizio":   "18/02/2013",
		},
	})
	require.NoError(t, err)
	assert.False(t, rec.Validated)
}

func TestNormalize_AdapterFrameworkHint(t *testing.T) {
	n := New(NewRegistry([]Adapter{{
		SourceID:  "eeas",
		FieldMap:  map[string][]string{FieldName: {"title"}},
		Framework: "EU",
	}}))

	rec, err := n.Normalize(model.RawRecord{
		SourceID: "eeas",
		Fields:   map[string]string{"title": "EUAM Ukraine"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.FrameworkEU, rec.FrameworkHint)
}
