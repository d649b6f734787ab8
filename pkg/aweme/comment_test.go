package aweme

import (
	"testing"

	errs "dyfav/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const commentPage = `{
  "status_code": 0,
  "comments": [
    {"cid": "c1", "aweme_id": 7301, "text": "好看", "create_time": 1700000100, "ip_label": "浙江",
     "digg_count": 5, "reply_comment_total": 2, "reply_id": "0",
     "user": {"uid": "9", "nickname": "路人", "avatar_thumb": {"url_list": ["http://x/u.jpg"]}},
     "image_list": [{"origin_url": {"url_list": ["http://x/p1.jpg"]}}]},
    {"cid": "c2", "aweme_id": "7301", "text": "同意", "reply_id": "c1"},
    {"text": "no id"},
    "garbage"
  ]
}`

func TestDecodeCommentsPage(t *testing.T) {
	comments, dropped, err := DecodeComments([]byte(commentPage))
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, 2, dropped)

	c := comments[0]
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, "7301", c.AwemeID)
	assert.Equal(t, "好看", c.Text)
	assert.Equal(t, int64(5), c.Likes)
	assert.Equal(t, int64(2), c.Replies)
	assert.Empty(t, c.ParentID)
	assert.Equal(t, "路人", c.Author.Nickname)
	assert.Equal(t, "http://x/u.jpg", c.Author.AvatarURL)
	assert.Equal(t, []string{"http://x/p1.jpg"}, c.Pictures)

	assert.Equal(t, "c1", comments[1].ParentID)
}

func TestDecodeCommentsArray(t *testing.T) {
	comments, dropped, err := DecodeComments([]byte(`[{"cid":"1","text":"a"},{"cid":2,"text":"b"}]`))
	require.NoError(t, err)
	assert.Zero(t, dropped)
	assert.Equal(t, "2", comments[1].ID)
}

func TestDecodeCommentsRejectsScalars(t *testing.T) {
	_, _, err := DecodeComments([]byte(`"nope"`))
	assert.True(t, errs.Is(err, errs.ErrorTypeFormat))

	_, _, err = DecodeComments([]byte(`[1,`))
	assert.True(t, errs.Is(err, errs.ErrorTypeParse))
}
