package dates

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradexpert/whatsnew-admin/internal/whatsnew"
)

func TestToEditFormat(t *testing.T) {
	assert.Equal(t, "2024-05-01", ToEditFormat("01-05-2024"))
	assert.Equal(t, "2024-05-01", ToEditFormat("2024-05-01"))
	assert.Equal(t, "", ToEditFormat("bad-date"))
	assert.Equal(t, "", ToEditFormat(""))
	assert.Equal(t, "", ToEditFormat("1-5-2024"))
}

func TestToStorageFormat(t *testing.T) {
	assert.Equal(t, "01-05-2024", ToStorageFormat("2024-05-01"))
	assert.Equal(t, "01-05-2024", ToStorageFormat("01-05-2024"), "storage format is idempotent")
	assert.Equal(t, "09-03-2024", ToStorageFormat("2024-03-09T22:30:00Z"), "day must not shift with timezone")
	assert.Equal(t, "", ToStorageFormat("bad-date"))
	assert.Equal(t, "", ToStorageFormat(""))
	assert.Equal(t, "", ToStorageFormat("   "))
}

func TestStorageEditRoundTrip(t *testing.T) {
	for _, s := range []string{"01-01-2024", "29-02-2024", "31-12-1999", "15-08-1947", "07-11-2030"} {
		t.Run(s, func(t *testing.T) {
			assert.Equal(t, s, ToStorageFormat(ToEditFormat(s)))
		})
	}
	for m := 1; m <= 12; m++ {
		s := fmt.Sprintf("28-%02d-2023", m)
		assert.Equal(t, s, ToStorageFormat(ToEditFormat(s)))
	}
}

func TestSanitizeDatedCollection(t *testing.T) {
	rows := []whatsnew.Row{
		whatsnew.NewRow(map[string]string{"dates": "2024-05-01", "company_name": "Acme"}),
		whatsnew.NewRow(map[string]string{"dates": "", "company_name": "Blank"}),
		whatsnew.NewRow(map[string]string{"dates": "not a date", "company_name": "Junk"}),
		whatsnew.NewRow(map[string]string{"dates": "12-06-2024", "company_name": "Kept"}),
	}

	out := SanitizeDatedCollection(rows, "dates")

	require.Len(t, out, 2)
	assert.Equal(t, "01-05-2024", out[0].Field("dates"))
	assert.Equal(t, "Acme", out[0].Field("company_name"))
	assert.Equal(t, "12-06-2024", out[1].Field("dates"))
	for _, r := range out {
		assert.NotEmpty(t, r.Field("dates"))
	}
	// input untouched
	assert.Equal(t, "2024-05-01", rows[0].Field("dates"))
}

func TestSanitizeDocument(t *testing.T) {
	doc := whatsnew.NewDocument()
	doc.Collections["upcoming_ipos"] = []whatsnew.Row{
		whatsnew.NewRow(map[string]string{"dates": "2024-05-01", "company_name": "Acme"}),
	}
	doc.Collections["news"][0].Fields["pubDate"] = "2024-04-30"

	out := SanitizeDocument(doc)

	assert.Equal(t, "01-05-2024", out.Rows("upcoming_ipos")[0].Field("dates"))
	assert.Equal(t, "30-04-2024", out.Rows("news")[0].Field("pubDate"))
	// the template FII/DII row has no date and is dropped
	assert.Empty(t, out.Rows("fiidii_activity"))
	// undated collections are shared, not copied
	assert.Equal(t, len(doc.Rows("corporate_action")), len(out.Rows("corporate_action")))
	assert.Equal(t, "2024-05-01", doc.Rows("upcoming_ipos")[0].Field("dates"))
}

func TestToEditDocument(t *testing.T) {
	doc := whatsnew.NewDocument()
	doc.Collections["news"][0].Fields["pubDate"] = "01-05-2024"
	doc.Collections["fiidii_activity"][0].Fields["currentDate"] = "garbage"

	out := ToEditDocument(doc)

	assert.Equal(t, "2024-05-01", out.Rows("news")[0].Field("pubDate"))
	assert.Equal(t, "", out.Rows("fiidii_activity")[0].Field("currentDate"))
	assert.Equal(t, "01-05-2024", doc.Rows("news")[0].Field("pubDate"))
}
