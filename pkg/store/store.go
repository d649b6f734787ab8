package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dyfav/pkg/aweme"
	"dyfav/pkg/config"
	"dyfav/pkg/logger"
)

// Store persists item metadata. Every operation is an upsert on the record's
// natural key: absent records are inserted with AddTS set, present records
// are updated in place keeping their original AddTS.
type Store interface {
	StoreContent(ctx context.Context, rec ContentRecord) error
	StoreComment(ctx context.Context, rec CommentRecord) error
	StoreCreator(ctx context.Context, rec CreatorRecord) error
	Close() error
}

// ErrNotInserted is returned by the relational and document backends for
// content without title and desc whose key is not stored yet. Such content
// is only ever updated there.
var ErrNotInserted = errors.New("content without title or desc is not inserted")

// Record kinds, also used in file names
const (
	KindContents = "contents"
	KindComments = "comments"
	KindCreator  = "creator"
)

// Timestamps are epoch milliseconds maintained by the stores
type Timestamps struct {
	AddTS        int64 `json:"add_ts"`
	LastModifyTS int64 `json:"last_modify_ts"`
}

func (t *Timestamps) stamp(now int64) {
	if t.AddTS == 0 {
		t.AddTS = now
	}
	t.LastModifyTS = now
}

// ContentRecord is the metadata row of one item
type ContentRecord struct {
	AwemeID          string `json:"aweme_id"`
	AwemeType        string `json:"aweme_type"`
	Title            string `json:"title"`
	Desc             string `json:"desc"`
	CreateTime       int64  `json:"create_time"`
	UserID           string `json:"user_id"`
	SecUID           string `json:"sec_uid"`
	ShortUserID      string `json:"short_user_id"`
	UserUniqueID     string `json:"user_unique_id"`
	UserSignature    string `json:"user_signature"`
	Nickname         string `json:"nickname"`
	Avatar           string `json:"avatar"`
	LikedCount       int64  `json:"liked_count"`
	CollectedCount   int64  `json:"collected_count"`
	CommentCount     int64  `json:"comment_count"`
	ShareCount       int64  `json:"share_count"`
	IPLocation       string `json:"ip_location"`
	AwemeURL         string `json:"aweme_url"`
	CoverURL         string `json:"cover_url"`
	VideoDownloadURL string `json:"video_download_url"`
	SourceKeyword    string `json:"source_keyword"`
	Timestamps
}

// CommentRecord is the metadata row of one comment
type CommentRecord struct {
	CommentID       string `json:"comment_id"`
	AwemeID         string `json:"aweme_id"`
	Content         string `json:"content"`
	CreateTime      int64  `json:"create_time"`
	IPLocation      string `json:"ip_location"`
	UserID          string `json:"user_id"`
	SecUID          string `json:"sec_uid"`
	ShortUserID     string `json:"short_user_id"`
	UserUniqueID    string `json:"user_unique_id"`
	UserSignature   string `json:"user_signature"`
	Nickname        string `json:"nickname"`
	Avatar          string `json:"avatar"`
	SubCommentCount int64  `json:"sub_comment_count"`
	LikeCount       int64  `json:"like_count"`
	ParentCommentID string `json:"parent_comment_id"`
	Pictures        string `json:"pictures"`
	Timestamps
}

// CreatorRecord is the metadata row of one author
type CreatorRecord struct {
	UserID      string `json:"user_id"`
	Nickname    string `json:"nickname"`
	Avatar      string `json:"avatar"`
	Desc        string `json:"desc"`
	Gender      string `json:"gender"`
	IPLocation  string `json:"ip_location"`
	Follows     int64  `json:"follows"`
	Fans        int64  `json:"fans"`
	Interaction int64  `json:"interaction"`
	VideosCount int64  `json:"videos_count"`
	Timestamps
}

// field is one named column value in a fixed order
type field struct {
	name  string
	value any
}

// record is the common view the backends use to persist any record kind
type record interface {
	kind() string
	keyColumn() string
	key() string
	fields() []field
	timestamps() *Timestamps
	// insertable reports whether an absent record may be created
	insertable() bool
}

func (r *ContentRecord) kind() string            { return KindContents }
func (r *ContentRecord) keyColumn() string       { return "aweme_id" }
func (r *ContentRecord) key() string             { return r.AwemeID }
func (r *ContentRecord) timestamps() *Timestamps { return &r.Timestamps }

// The database backends never create content without any text.
func (r *ContentRecord) insertable() bool {
	return r.Title != "" || r.Desc != ""
}

func (r *ContentRecord) fields() []field {
	return []field{
		{"aweme_id", r.AwemeID},
		{"aweme_type", r.AwemeType},
		{"title", r.Title},
		{"desc", r.Desc},
		{"create_time", r.CreateTime},
		{"user_id", r.UserID},
		{"sec_uid", r.SecUID},
		{"short_user_id", r.ShortUserID},
		{"user_unique_id", r.UserUniqueID},
		{"user_signature", r.UserSignature},
		{"nickname", r.Nickname},
		{"avatar", r.Avatar},
		{"liked_count", r.LikedCount},
		{"collected_count", r.CollectedCount},
		{"comment_count", r.CommentCount},
		{"share_count", r.ShareCount},
		{"ip_location", r.IPLocation},
		{"aweme_url", r.AwemeURL},
		{"cover_url", r.CoverURL},
		{"video_download_url", r.VideoDownloadURL},
		{"source_keyword", r.SourceKeyword},
		{"add_ts", r.AddTS},
		{"last_modify_ts", r.LastModifyTS},
	}
}

func (r *CommentRecord) kind() string            { return KindComments }
func (r *CommentRecord) keyColumn() string       { return "comment_id" }
func (r *CommentRecord) key() string             { return r.CommentID }
func (r *CommentRecord) timestamps() *Timestamps { return &r.Timestamps }
func (r *CommentRecord) insertable() bool        { return true }

func (r *CommentRecord) fields() []field {
	return []field{
		{"comment_id", r.CommentID},
		{"aweme_id", r.AwemeID},
		{"content", r.Content},
		{"create_time", r.CreateTime},
		{"ip_location", r.IPLocation},
		{"user_id", r.UserID},
		{"sec_uid", r.SecUID},
		{"short_user_id", r.ShortUserID},
		{"user_unique_id", r.UserUniqueID},
		{"user_signature", r.UserSignature},
		{"nickname", r.Nickname},
		{"avatar", r.Avatar},
		{"sub_comment_count", r.SubCommentCount},
		{"like_count", r.LikeCount},
		{"parent_comment_id", r.ParentCommentID},
		{"pictures", r.Pictures},
		{"add_ts", r.AddTS},
		{"last_modify_ts", r.LastModifyTS},
	}
}

func (r *CreatorRecord) kind() string            { return KindCreator }
func (r *CreatorRecord) keyColumn() string       { return "user_id" }
func (r *CreatorRecord) key() string             { return r.UserID }
func (r *CreatorRecord) timestamps() *Timestamps { return &r.Timestamps }
func (r *CreatorRecord) insertable() bool        { return true }

func (r *CreatorRecord) fields() []field {
	return []field{
		{"user_id", r.UserID},
		{"nickname", r.Nickname},
		{"avatar", r.Avatar},
		{"desc", r.Desc},
		{"gender", r.Gender},
		{"ip_location", r.IPLocation},
		{"follows", r.Follows},
		{"fans", r.Fans},
		{"interaction", r.Interaction},
		{"videos_count", r.VideosCount},
		{"add_ts", r.AddTS},
		{"last_modify_ts", r.LastModifyTS},
	}
}

// columns returns the column names of r in order
func columns(r record) []string {
	fs := r.fields()
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.name
	}
	return names
}

// maxTitleRunes bounds the stored title
const maxTitleRunes = 1024

// RecordsFromItem maps a favorited item to its content and creator rows.
// The creator is nil when the item carries no author id.
func RecordsFromItem(item aweme.Item, crawlerType string) (ContentRecord, *CreatorRecord) {
	title := []rune(item.Text())
	if len(title) > maxTitleRunes {
		title = title[:maxTitleRunes]
	}

	content := ContentRecord{
		AwemeID:        item.ID,
		AwemeType:      fmt.Sprint(item.RawType),
		Title:          string(title),
		Desc:           item.Desc,
		CreateTime:     item.CreateTime,
		UserID:         item.Author.UID,
		SecUID:         item.Author.SecUID,
		ShortUserID:    item.Author.ShortID,
		UserUniqueID:   item.Author.UniqueID,
		UserSignature:  item.Author.Signature,
		Nickname:       item.Author.Nickname,
		Avatar:         item.Author.AvatarURL,
		LikedCount:     item.Statistics.Likes,
		CollectedCount: item.Statistics.Collects,
		CommentCount:   item.Statistics.Comments,
		ShareCount:     item.Statistics.Shares,
		IPLocation:     item.IPLocation,
		AwemeURL:       "https://www.douyin.com/video/" + item.ID,
		SourceKeyword:  crawlerType,
	}
	if item.ShareURL != "" {
		content.AwemeURL = item.ShareURL
	}
	switch item.Kind {
	case aweme.KindVideo:
		if item.Video != nil {
			if len(item.Video.URLs) > 0 {
				content.VideoDownloadURL = item.Video.URLs[0]
			}
			if len(item.Video.CoverURLs) > 0 {
				content.CoverURL = item.Video.CoverURLs[0]
			}
		}
	case aweme.KindImageSet:
		if len(item.Images) > 0 && len(item.Images[0].URLs) > 0 {
			content.CoverURL = item.Images[0].URLs[0]
		}
	}

	if item.Author.UID == "" {
		return content, nil
	}
	return content, &CreatorRecord{
		UserID:      item.Author.UID,
		Nickname:    item.Author.Nickname,
		Avatar:      item.Author.AvatarURL,
		Desc:        item.Author.Signature,
		IPLocation:  item.IPLocation,
		Follows:     item.Author.Following,
		Fans:        item.Author.Followers,
		Interaction: item.Author.TotalFavorited,
		VideosCount: item.Author.Works,
	}
}

// RecordFromComment maps a decoded comment to its row
func RecordFromComment(c aweme.Comment) CommentRecord {
	return CommentRecord{
		CommentID:       c.ID,
		AwemeID:         c.AwemeID,
		Content:         c.Text,
		CreateTime:      c.CreateTime,
		IPLocation:      c.IPLocation,
		UserID:          c.Author.UID,
		SecUID:          c.Author.SecUID,
		ShortUserID:     c.Author.ShortID,
		UserUniqueID:    c.Author.UniqueID,
		UserSignature:   c.Author.Signature,
		Nickname:        c.Author.Nickname,
		Avatar:          c.Author.AvatarURL,
		SubCommentCount: c.Replies,
		LikeCount:       c.Likes,
		ParentCommentID: c.ParentID,
		Pictures:        strings.Join(c.Pictures, ","),
	}
}

// Open builds the backend selected by cfg.Backend
func Open(ctx context.Context, cfg config.StorageConfig, log logger.Logger) (Store, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	crawler := cfg.CrawlerType
	if crawler == "" {
		crawler = "like"
	}

	switch strings.ToLower(cfg.Backend) {
	case "", "none":
		return Nop{}, nil
	case "csv":
		return NewCSV(cfg.Directory, crawler, log)
	case "json":
		return NewJSON(cfg.Directory, crawler, cfg.WordFrequency, log)
	case "sqlite":
		return OpenSQLite(ctx, cfg.SQLitePath, log)
	case "postgres":
		return OpenPostgres(ctx, cfg.PostgresDSN, log)
	case "mongo":
		return OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Nop discards every record
type Nop struct{}

func (Nop) StoreContent(context.Context, ContentRecord) error { return nil }
func (Nop) StoreComment(context.Context, CommentRecord) error { return nil }
func (Nop) StoreCreator(context.Context, CreatorRecord) error { return nil }
func (Nop) Close() error                                      { return nil }

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func dateStamp() string {
	return time.Now().Format("2006-01-02")
}
