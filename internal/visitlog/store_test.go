package visitlog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/passport/internal/apperr"
	"github.com/starford/passport/internal/checksum"
	"github.com/starford/passport/internal/models"
	"github.com/starford/passport/internal/storage"
	"github.com/starford/passport/internal/testutil"
	"github.com/starford/passport/internal/visitlog"
)

const header = "country,iso3,city,restaurant_name,rating,visit_date,notes,latitude,longitude\n"

func senegal() models.Visit {
	return models.Visit{
		Country:        "Senegal",
		ISO3:           "SEN",
		City:           "Dakar",
		RestaurantName: "Chez Loutcha",
		Rating:         5,
		VisitDate:      models.NewDate(2023, time.June, 10),
		Notes:          "thieboudienne",
		Latitude:       14.6928,
		Longitude:      -17.4467,
	}
}

func newStore(t *testing.T, content string, opts ...visitlog.Option) (*visitlog.Store, storage.Provider) {
	t.Helper()
	_, files := testutil.WriteLog(t, content)
	return visitlog.NewStore(files, testutil.DataFile, opts...), files
}

func TestLoad_Sample(t *testing.T) {
	s, _ := newStore(t, testutil.SampleCSV)

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Visits, 3)
	assert.Empty(t, snap.Rejected)
	assert.Equal(t, checksum.Sum([]byte(testutil.SampleCSV)), snap.Checksum)

	nga := snap.Visits[1]
	assert.Equal(t, 2, nga.Row)
	assert.Equal(t, "NGA", nga.ISO3)
	assert.Equal(t, "suya, pepper soup", nga.Notes)
	assert.Equal(t, 4.5, nga.Rating)
	assert.Equal(t, "2023-07-14", nga.VisitDate.String())
}

func TestLoad_MissingFile(t *testing.T) {
	_, files := testutil.TestDataDir(t)
	s := visitlog.NewStore(files, testutil.DataFile)

	_, err := s.Load(context.Background())
	de, ok := apperr.AsDataFormat(err)
	require.True(t, ok, "err = %v", err)
	assert.Equal(t, "file not found", de.Reason)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoad_CreateIfMissing(t *testing.T) {
	_, files := testutil.TestDataDir(t)
	s := visitlog.NewStore(files, testutil.DataFile, visitlog.WithCreateIfMissing(true))

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Visits)

	data, err := files.Read(testutil.DataFile)
	require.NoError(t, err)
	assert.Equal(t, header, string(data))
}

func TestLoad_EmptyFile(t *testing.T) {
	s, _ := newStore(t, "")
	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Visits)
}

func TestLoad_MissingColumns(t *testing.T) {
	s, _ := newStore(t, "country,iso3,city\nGhana,GHA,Accra\n")

	_, err := s.Load(context.Background())
	de, ok := apperr.AsDataFormat(err)
	require.True(t, ok, "err = %v", err)
	assert.Contains(t, de.Column, "restaurant_name")
	assert.Contains(t, de.Column, "longitude")
}

func TestLoad_HeaderCaseAndOrderAndExtras(t *testing.T) {
	content := "\ufeffISO3,Country,Restaurant_Name,City,Rating,Visit_Date,Notes,Latitude,Longitude,Spend\n" +
		"gha, Ghana ,Kobi Restaurant,Accra,4,05/01/2023,,5.6,-0.2,30\n"
	s, _ := newStore(t, content)

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Visits, 1)
	v := snap.Visits[0]
	assert.Equal(t, "GHA", v.ISO3)
	assert.Equal(t, "Ghana", v.Country)
	assert.Equal(t, "2023-05-01", v.VisitDate.String())
}

func TestLoad_LenientSkipsBadRows(t *testing.T) {
	content := header +
		"Ghana,GHA,Accra,Kobi Restaurant,4,2023-05-01,,5.6,-0.2\n" +
		"France,FRA,Paris,Le Bistro,4,2023-05-02,,48.8,2.3\n" +
		"Senegal,SEN,Dakar,Chez Loutcha,9,2023-06-10,,14.7,-17.4\n" +
		"Kenya,KEN,Nairobi,Nyama Choma,4,not-a-date,,-1.3,36.8\n" +
		"Mali,MLI,Bamako\n"
	s, _ := newStore(t, content)

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Visits, 1)
	require.Len(t, snap.Rejected, 4)

	assert.Equal(t, visitlog.RowError{Row: 2, Column: "iso3", Reason: "is not an African country code"}, snap.Rejected[0])
	assert.Equal(t, 3, snap.Rejected[1].Row)
	assert.Equal(t, "rating", snap.Rejected[1].Column)
	assert.Equal(t, "visit_date", snap.Rejected[2].Column)
	assert.Equal(t, "row", snap.Rejected[3].Column)
}

func TestLoad_StrictFailsOnBadRow(t *testing.T) {
	content := header +
		"Ghana,GHA,Accra,Kobi Restaurant,4,2023-05-01,,5.6,-0.2\n" +
		"Ghana,GHA,Accra,Buka,4,2023-05-01,,95,-0.2\n"
	s, _ := newStore(t, content, visitlog.WithStrict(true))

	_, err := s.Load(context.Background())
	de, ok := apperr.AsDataFormat(err)
	require.True(t, ok, "err = %v", err)
	assert.Equal(t, 2, de.Row)
	assert.Equal(t, "latitude", de.Column)
}

func TestLoad_MalformedCSV(t *testing.T) {
	s, _ := newStore(t, header+"Ghana,GHA,\"Accra,Kobi,4\n")
	_, err := s.Load(context.Background())
	_, ok := apperr.AsDataFormat(err)
	assert.True(t, ok, "err = %v", err)
}

func TestAppend_RoundTrip(t *testing.T) {
	s, _ := newStore(t, testutil.GhanaCSV)
	ctx := context.Background()

	in := senegal()
	in.Notes = "  thieboudienne, yassa  "
	stored, err := s.Append(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Row)
	assert.Equal(t, "thieboudienne, yassa", stored.Notes)

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Visits, 2)
	assert.True(t, snap.Visits[1].SameRecord(stored), "got %+v", snap.Visits[1])
	assert.Equal(t, stored, snap.Visits[1])
}

func TestAppend_PreservesExistingBytes(t *testing.T) {
	original := "Country,ISO3,City,Restaurant_Name,Rating,Visit_Date,Notes,Latitude,Longitude,Spend\r\n" +
		"Ghana,GHA,Accra,Kobi Restaurant,4.0,05/01/2023,,5.60,-0.2,30"
	s, files := newStore(t, original)

	_, err := s.Append(context.Background(), senegal())
	require.NoError(t, err)

	data, err := files.Read(testutil.DataFile)
	require.NoError(t, err)
	assert.Equal(t, original+"\r\n"+
		"Senegal,SEN,Dakar,Chez Loutcha,5,2023-06-10,thieboudienne,14.6928,-17.4467,\r\n", string(data))
}

func TestAppend_CreatesFileWithHeader(t *testing.T) {
	_, files := testutil.TestDataDir(t)
	s := visitlog.NewStore(files, testutil.DataFile)

	stored, err := s.Append(context.Background(), senegal())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Row)

	data, err := files.Read(testutil.DataFile)
	require.NoError(t, err)
	assert.Equal(t, header+"Senegal,SEN,Dakar,Chez Loutcha,5,2023-06-10,thieboudienne,14.6928,-17.4467\n", string(data))
}

func TestAppend_RatingOutOfBoundsLeavesFileUntouched(t *testing.T) {
	s, files := newStore(t, testutil.GhanaCSV)

	v := senegal()
	v.Rating = 6
	_, err := s.Append(context.Background(), v)

	ve, ok := apperr.AsValidation(err)
	require.True(t, ok, "err = %v", err)
	assert.Equal(t, "rating", ve.Field)

	data, err := files.Read(testutil.DataFile)
	require.NoError(t, err)
	assert.Equal(t, testutil.GhanaCSV, string(data))
}

func TestAppend_ValidationNamesField(t *testing.T) {
	cases := []struct {
		field  string
		mutate func(*models.Visit)
	}{
		{"country", func(v *models.Visit) { v.Country = " " }},
		{"iso3", func(v *models.Visit) { v.ISO3 = "FRA" }},
		{"iso3", func(v *models.Visit) { v.ISO3 = "" }},
		{"restaurant_name", func(v *models.Visit) { v.RestaurantName = "" }},
		{"rating", func(v *models.Visit) { v.Rating = -0.5 }},
		{"visit_date", func(v *models.Visit) { v.VisitDate = models.Date{} }},
		{"latitude", func(v *models.Visit) { v.Latitude = 91 }},
		{"longitude", func(v *models.Visit) { v.Longitude = -181 }},
	}
	s, _ := newStore(t, testutil.GhanaCSV)
	for _, tc := range cases {
		v := senegal()
		tc.mutate(&v)
		_, err := s.Append(context.Background(), v)
		ve, ok := apperr.AsValidation(err)
		if assert.True(t, ok, "%s: err = %v", tc.field, err) {
			assert.Equal(t, tc.field, ve.Field)
		}
	}
}

func TestAppend_WriteFailureIsIOError(t *testing.T) {
	dir, files := testutil.WriteLog(t, testutil.GhanaCSV)
	s := visitlog.NewStore(files, testutil.DataFile)

	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })
	if f, err := os.CreateTemp(dir, "writable"); err == nil {
		f.Close()
		_ = os.Remove(f.Name())
		t.Skip("directory still writable (running as root)")
	}

	_, err := s.Append(context.Background(), senegal())
	assert.True(t, apperr.IsIO(err), "err = %v", err)

	data, err := os.ReadFile(filepath.Join(dir, testutil.DataFile))
	require.NoError(t, err)
	assert.Equal(t, testutil.GhanaCSV, string(data))
}

func TestUpdate(t *testing.T) {
	s, _ := newStore(t, testutil.SampleCSV)
	ctx := context.Background()
	snap, err := s.Load(ctx)
	require.NoError(t, err)

	v := snap.Visits[1]
	v.Rating = 3.5
	got, err := s.Update(ctx, 2, v, snap.Checksum)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Row)

	after, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, after.Visits, 3)
	assert.Equal(t, 3.5, after.Visits[1].Rating)
	assert.Equal(t, snap.Visits[0], after.Visits[0])
	assert.Equal(t, snap.Visits[2], after.Visits[2])
}

func TestUpdate_Conflict(t *testing.T) {
	s, _ := newStore(t, testutil.SampleCSV)
	_, err := s.Update(context.Background(), 1, senegal(), "stale")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestUpdate_RowOutOfRange(t *testing.T) {
	s, _ := newStore(t, testutil.SampleCSV)
	_, err := s.Update(context.Background(), 4, senegal(), "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = s.Update(context.Background(), 0, senegal(), "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDelete_KeepsOtherRowsEvenMalformed(t *testing.T) {
	content := header +
		"Ghana,GHA,Accra,Kobi Restaurant,4,2023-05-01,,5.6,-0.2\n" +
		"France,FRA,Paris,Le Bistro,4,2023-05-02,,48.8,2.3\n" +
		"Senegal,SEN,Dakar,Chez Loutcha,5,2023-06-10,,14.7,-17.4\n"
	s, files := newStore(t, content)

	removed, err := s.Delete(context.Background(), 2, checksum.Sum([]byte(content)))
	require.NoError(t, err)
	assert.Equal(t, 2, removed.Row)
	assert.Equal(t, "Le Bistro", removed.RestaurantName)
	assert.Equal(t, "FRA", removed.ISO3)

	data, err := files.Read(testutil.DataFile)
	require.NoError(t, err)
	assert.Equal(t, header+
		"Ghana,GHA,Accra,Kobi Restaurant,4,2023-05-01,,5.6,-0.2\n"+
		"Senegal,SEN,Dakar,Chez Loutcha,5,2023-06-10,,14.7,-17.4\n", string(data))
}

func TestDelete_ReturnsRowFromFileNotCaller(t *testing.T) {
	s, files := newStore(t, testutil.SampleCSV)
	ctx := context.Background()

	// An edit the caller has not loaded yet moves Ethiopia to row 1.
	edited := header +
		"Ethiopia,ETH,Addis Ababa,Yod Abyssinia,5,2024-01-20,injera,9.03,38.74\n" +
		"Ghana,GHA,Accra,Kobi Restaurant,4,2023-05-01,,5.6,-0.2\n"
	require.NoError(t, files.Write(testutil.DataFile, []byte(edited)))

	removed, err := s.Delete(ctx, 1, "")
	require.NoError(t, err)
	assert.Equal(t, "Yod Abyssinia", removed.RestaurantName)
	assert.Equal(t, "ETH", removed.ISO3)
	assert.Equal(t, 1, removed.Row)
}

func TestDelete_Conflict(t *testing.T) {
	s, _ := newStore(t, testutil.SampleCSV)
	_, err := s.Delete(context.Background(), 1, "stale")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestAppend_LineEndingFollowsHeader(t *testing.T) {
	// LF file whose quoted note carries a CRLF.
	content := header +
		"Ghana,GHA,Accra,Kobi Restaurant,4,2023-05-01,\"jollof\r\nwaakye\",5.6,-0.2\n"
	s, files := newStore(t, content)

	_, err := s.Append(context.Background(), senegal())
	require.NoError(t, err)

	data, err := files.Read(testutil.DataFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), content), "existing bytes must be kept")
	tail := strings.TrimPrefix(string(data), content)
	assert.True(t, strings.HasSuffix(tail, "\n"))
	assert.NotContains(t, tail, "\r")
}

func TestLoad_EmptyCoordinateRejected(t *testing.T) {
	s, _ := newStore(t, header+
		"Ghana,GHA,Accra,Kobi Restaurant,4,2023-05-01,,,-0.2\n"+
		"Senegal,SEN,Dakar,Chez Loutcha,5,2023-06-10,,14.7,-17.4\n")

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Visits, 1)
	assert.Equal(t, "SEN", snap.Visits[0].ISO3)
	require.Len(t, snap.Rejected, 1)
	assert.Equal(t, 1, snap.Rejected[0].Row)
	assert.Equal(t, "latitude", snap.Rejected[0].Column)
	assert.Equal(t, "is required", snap.Rejected[0].Reason)
}

func TestGhanaSenegalScenario(t *testing.T) {
	s, _ := newStore(t, testutil.GhanaCSV)
	ctx := context.Background()

	_, err := s.Append(ctx, senegal())
	require.NoError(t, err)
	snap, err := s.Load(ctx)
	require.NoError(t, err)

	both := visitlog.Filter(snap.Visits, visitlog.Query{Rating: &visitlog.Range{Min: 4, Max: 5}})
	require.Len(t, both, 2)
	assert.Equal(t, "GHA", both[0].ISO3)
	assert.Equal(t, "SEN", both[1].ISO3)

	q, err := visitlog.Query{Countries: []string{"SN"}}.Normalize(s.Registry())
	require.NoError(t, err)
	only := visitlog.Filter(snap.Visits, q)
	require.Len(t, only, 1)
	assert.Equal(t, "Chez Loutcha", only[0].RestaurantName)
}

func TestExport_LoadIsByteIdentical(t *testing.T) {
	s, _ := newStore(t, testutil.SampleCSV)
	snap, err := s.Load(context.Background())
	require.NoError(t, err)

	out, err := visitlog.ExportBytes(snap.Visits)
	require.NoError(t, err)
	assert.Equal(t, testutil.SampleCSV, string(out))
}

func TestExport_Canonicalises(t *testing.T) {
	s, _ := newStore(t, "ISO3,Country,City,Restaurant_Name,Rating,Visit_Date,Notes,Latitude,Longitude\r\n"+
		"GHA,Ghana,Accra,Kobi Restaurant,4.0,05/01/2023,,5.60,-0.2\r\n")
	snap, err := s.Load(context.Background())
	require.NoError(t, err)

	out, err := visitlog.ExportBytes(snap.Visits)
	require.NoError(t, err)
	assert.Equal(t, header+"Ghana,GHA,Accra,Kobi Restaurant,4,2023-05-01,,5.6,-0.2\n", string(out))
}
