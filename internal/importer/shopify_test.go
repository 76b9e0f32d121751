package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/vivi-tora/mfc/internal/model"
)

const header = "Title,Vendor,Type,Status,Variant Barcode,Variant Price,Variant Inventory Qty,URL\n"

func TestParse_ActiveRows(t *testing.T) {
	csv := header +
		"Saber 1/7,Good Smile,Figure,Active,4981932123457,12800.00,3,https://shop.example/saber\n" +
		"\"Rin, Winter\",Alter,Figure,Active,EZ12345678,9800,0,http://shop.example/rin\n"

	res, err := Parse(strings.NewReader(csv))
	require.NoError(t, err)
	assert.True(t, res.Valid())
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, []model.Item{
		{Code: "4981932123457", Available: true, Price: 12800, URL: "https://shop.example/saber", Title: "Saber 1/7", Vendor: "Good Smile"},
		{Code: "EZ12345678", Available: false, Price: 9800, URL: "http://shop.example/rin", Title: "Rin, Winter", Vendor: "Alter"},
	}, res.Items)
}

func TestParse_SkipRules(t *testing.T) {
	csv := header +
		"a,v,Figure,Draft,4981932123457,100,1,https://x/1\n" +
		"b,v,,Active,4981932123457,100,1,https://x/2\n" +
		"c,v,DL,Active,4981932123457,100,1,https://x/3\n" +
		"d,v,test,Active,4981932123457,100,1,https://x/4\n" +
		"e,v,デジタルコンテンツ,Active,4981932123457,100,1,https://x/5\n" +
		"f,v, DL ,Active,4981932123457,100,1,https://x/6\n" +
		"g,v,Figure,Active,4981932123457,100,1,https://x/7\n"

	res, err := Parse(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 6, res.Skipped)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "g", res.Items[0].Title)
}

func TestParse_RowErrors(t *testing.T) {
	csv := header +
		"ok,v,Figure,Active,4981932123457,100,1,https://x/1\n" +
		"bad,v,Figure,Active,12345,0,abc,ftp://x\n" +
		"empty,v,Figure,Active,,,,\n" +
		"frac,v,Figure,Active,4981932123457,99.5,1,https://x/4\n"

	res, err := Parse(strings.NewReader(csv))
	require.NoError(t, err)
	assert.False(t, res.Valid())
	require.Len(t, res.Items, 1)

	require.Len(t, res.Errors, 3)
	assert.Equal(t, 3, res.Errors[0].Row)
	assert.Equal(t, []string{
		"Variant Barcode must be 13 digits or EZ followed by 8 digits",
		"Variant Price must be a positive number",
		"URL is not a valid URL",
		"Variant Inventory Qty must be a number",
	}, res.Errors[0].Problems)

	assert.Equal(t, 4, res.Errors[1].Row)
	assert.Equal(t, []string{
		"Variant Barcode is empty",
		"Variant Price is empty",
		"URL is empty",
	}, res.Errors[1].Problems)

	assert.Equal(t, "row 5: Variant Price must be a whole number", res.Errors[2].Error())
}

func TestParse_MissingColumns(t *testing.T) {
	_, err := Parse(strings.NewReader("Title,Status,Type\nx,Active,Figure\n"))
	var missing *MissingColumnsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"Variant Barcode", "Variant Price", "URL", "Variant Inventory Qty"}, missing.Columns)
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Parse(strings.NewReader(header))
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestParse_ByteOrderMark(t *testing.T) {
	csv := "\ufeff" + header + "a,v,Figure,Active,4981932123457,100,2,https://x/1\n"

	res, err := Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.True(t, res.Items[0].Available)
}

func TestParse_ShiftJIS(t *testing.T) {
	utf8CSV := header + "フィギュア,メーカー,Figure,Active,4981932123457,5500,1,https://x/1\n"
	sjis, _, err := transform.String(japanese.ShiftJIS.NewEncoder(), utf8CSV)
	require.NoError(t, err)

	res, err := Parse(strings.NewReader(sjis))
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "フィギュア", res.Items[0].Title)
	assert.Equal(t, "メーカー", res.Items[0].Vendor)
}
