package extractor

import (
	"encoding/json"
	"testing"

	"dyfav/pkg/har"
	"dyfav/pkg/har/hartest"
	"dyfav/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const endpoint = "/aweme/v1/web/aweme/favorite/"

func TestFirstSeenWins(t *testing.T) {
	doc := hartest.New().
		Text(hartest.FavoriteURL, 200, `{"aweme_list":[{"aweme_id":"123","desc":"first"},{"aweme_id":"9"}],"has_more":1,"max_cursor":200}`).
		Base64(hartest.FavoriteURL, 200, `{"aweme_list":[{"aweme_id":"123","desc":"second"},{"aweme_id":"10"}],"has_more":0,"max_cursor":100}`).
		Document()

	coll, stats := FromDocument(doc, endpoint, logger.NewNopLogger())

	assert.Equal(t, []string{"123", "9", "10"}, coll.IDs())
	assert.Equal(t, "first", coll.Items[0].Desc)
	assert.JSONEq(t, `{"aweme_id":"123","desc":"first"}`, string(coll.Items[0].Raw))

	assert.Equal(t, 2, stats.Scanned)
	assert.Equal(t, 2, stats.Matched)
	assert.Equal(t, 2, stats.Parsed)
	assert.Equal(t, 4, stats.RawItems)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 3, stats.Unique)
	require.Len(t, stats.Pages, 2)
	assert.True(t, stats.Pages[0].HasMore)
	assert.Equal(t, int64(200), stats.Pages[0].MaxCursor)
	assert.False(t, stats.Pages[1].HasMore)
}

func TestFaultIsolation(t *testing.T) {
	doc := hartest.New().
		Text("https://www.douyin.com/aweme/v1/web/im/user/info/", 200, `{"aweme_list":[{"aweme_id":"X"}]}`).
		Text(hartest.FavoriteURL, 200, `{"aweme_list":[{"aweme_id":"A"}`).
		Text(hartest.FavoriteURL, 200, `{"status_code":0,"status_msg":""}`).
		Text(hartest.FavoriteURL, 403, `{"aweme_list":[{"aweme_id":"FORBIDDEN"}]}`).
		Base64(hartest.FavoriteURL, 200, `{"aweme_list":[{"desc":"no id"},"junk",{"aweme_id":"B"}]}`).
		Entry(hartest.FavoriteURL, 200, har.Content{Text: "%%%", Encoding: "base64"}).
		Document()

	tl := logger.NewTestLogger()
	coll, stats := FromDocument(doc, endpoint, tl)

	assert.Equal(t, []string{"B"}, coll.IDs())
	assert.Equal(t, 6, stats.Scanned)
	assert.Equal(t, 5, stats.Matched)
	assert.Equal(t, 1, stats.NonOK)
	assert.Equal(t, 1, stats.DecodeFailed)
	assert.Equal(t, 1, stats.ParseFailed)
	assert.Equal(t, 2, stats.Parsed)
	assert.Equal(t, 1, stats.WithoutData, "missing aweme_list is not a parse failure")
	assert.Equal(t, 3, stats.RawItems)
	assert.Equal(t, 1, stats.MissingID)
	assert.Equal(t, 1, stats.Malformed)
	assert.Equal(t, 1, stats.Unique)

	assert.True(t, tl.HasMessage("Skipping unparseable response"))
	assert.True(t, tl.HasMessage("Skipping undecodable response"))
}

func TestExtractIsRepeatable(t *testing.T) {
	doc := hartest.New().
		Text(hartest.FavoriteURL, 200, `{"aweme_list":[{"aweme_id":"A"},{"aweme_id":"A"}]}`).
		Document()

	first, s1 := FromDocument(doc, endpoint, nil)
	second, s2 := FromDocument(doc, endpoint, nil)
	assert.Equal(t, first.IDs(), second.IDs())
	assert.Equal(t, s1.Duplicates, s2.Duplicates)
	assert.Equal(t, 1, s2.Duplicates)
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	path := hartest.New().
		Base64(hartest.FavoriteURL, 200, `{"aweme_list":[{"aweme_id":"A","aweme_type":68,"images":[]}]}`).
		WriteFile(t, dir)

	coll, stats, err := FromFile(path, endpoint, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, coll.Len())
	assert.Equal(t, 1, stats.Unique)

	_, _, err = FromFile(dir+"/missing.har", endpoint, nil)
	assert.Error(t, err)
}

func TestItemsKeepRawBytes(t *testing.T) {
	body := `{"aweme_list":[{"aweme_id":"A","title":"你好"}]}`
	doc := hartest.New().Text(hartest.FavoriteURL, 200, body).Document()

	coll, _ := FromDocument(doc, endpoint, nil)
	require.Equal(t, 1, coll.Len())

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(coll.Items[0].Raw, &decoded))
	assert.Equal(t, "你好", decoded["title"])
}
