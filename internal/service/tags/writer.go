package tags

//go:generate $MOCKGEN -source=writer.go -destination=mocks/writer_mock.go

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
	"github.com/oshokin/id3v2/v2"

	"github.com/oshokin/trackvault/internal/constants"
	"github.com/oshokin/trackvault/internal/logger"
)

// Writer defines the interface for writing metadata tags to audio files.
type Writer interface {
	// Supports reports whether tags can be written for the given MIME type.
	Supports(mimeType string) bool
	// WriteTags writes metadata into the audio file in place.
	WriteTags(ctx context.Context, req *WriteTagsRequest) error
}

// WriteTagsRequest contains parameters for writing metadata to audio files.
type WriteTagsRequest struct {
	// TrackPath is the file path of the audio track.
	TrackPath string
	// MimeType is the MIME type of the audio track.
	MimeType string
	// TrackID is the catalogue identifier of the track.
	TrackID string
	// Title is the track title.
	Title string
	// Artist is the performing artist.
	Artist string
	// Album is the release title.
	Album string
	// Year is the release year (0 if unknown).
	Year int
	// DurationSeconds is the track duration (0 if unknown).
	DurationSeconds int64
	// Cover is the optional cover image to embed.
	Cover *Image
}

// Image contains image data and its MIME type.
type Image struct {
	// Data contains the raw image bytes.
	Data []byte
	// MimeType specifies the image format (e.g., "image/jpeg").
	MimeType string
}

// WriterImpl provides the default implementation of Writer.
type WriterImpl struct{}

// extractFLACCommentResult contains the result of extracting FLAC comment metadata.
type extractFLACCommentResult struct {
	// Comment is the FLAC Vorbis comment metadata block.
	Comment *flacvorbis.MetaDataBlockVorbisComment
	// Index is the index of the comment block in the FLAC file metadata (-1 if not found).
	Index int
}

// Static error definitions for better error handling.
var (
	// ErrEmptyTrackPath indicates that the track file path is empty.
	ErrEmptyTrackPath = errors.New("track path cannot be empty")
	// ErrUnsupportedFormat indicates that tags cannot be written for the MIME type.
	ErrUnsupportedFormat = errors.New("unsupported audio format for tagging")
)

// NewWriter creates a new Writer instance.
func NewWriter() Writer {
	return new(WriterImpl)
}

// Supports reports whether tags can be written for the given MIME type.
func (w *WriterImpl) Supports(mimeType string) bool {
	switch mediaType(mimeType) {
	case constants.MimeTypeFLAC, constants.MimeTypeMPEG:
		return true
	default:
		return false
	}
}

// WriteTags writes metadata to audio files based on the provided request.
func (w *WriterImpl) WriteTags(ctx context.Context, req *WriteTagsRequest) error {
	if req.TrackPath == "" {
		return ErrEmptyTrackPath
	}

	switch mediaType(req.MimeType) {
	case constants.MimeTypeFLAC:
		return w.writeFLACTags(ctx, req)
	case constants.MimeTypeMPEG:
		return w.writeMP3Tags(req)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.MimeType)
	}
}

func (w *WriterImpl) writeFLACTags(ctx context.Context, req *WriteTagsRequest) error {
	f, err := flac.ParseFile(filepath.Clean(req.TrackPath))
	if err != nil {
		return err
	}

	commentResult := w.extractFLACComment(f)

	tag := commentResult.Comment
	if tag == nil {
		tag = flacvorbis.New()
	}

	if err = w.addFLACTags(tag, req); err != nil {
		return err
	}

	tagMeta := tag.Marshal()
	if commentResult.Index >= 0 {
		f.Meta[commentResult.Index] = &tagMeta
	} else {
		f.Meta = append(f.Meta, &tagMeta)
	}

	w.embedFLACCover(ctx, f, req.Cover)

	return f.Save(req.TrackPath)
}

func (w *WriterImpl) extractFLACComment(f *flac.File) *extractFLACCommentResult {
	for idx, meta := range f.Meta {
		if meta.Type != flac.VorbisComment {
			continue
		}

		comment, err := flacvorbis.ParseFromMetaDataBlock(*meta)
		if err == nil {
			return &extractFLACCommentResult{
				Comment: comment,
				Index:   idx,
			}
		}
	}

	return &extractFLACCommentResult{
		Comment: nil,
		Index:   -1,
	}
}

func (w *WriterImpl) addFLACTags(tag *flacvorbis.MetaDataBlockVorbisComment, req *WriteTagsRequest) error {
	flacTags := map[string]string{
		flacvorbis.FIELD_TITLE:  req.Title,
		flacvorbis.FIELD_ARTIST: req.Artist,
		flacvorbis.FIELD_ALBUM:  req.Album,
		"TRACK_ID":              req.TrackID,
	}

	if req.Year > 0 {
		flacTags[flacvorbis.FIELD_DATE] = strconv.Itoa(req.Year)
		flacTags["YEAR"] = strconv.Itoa(req.Year)
	}

	if req.DurationSeconds > 0 {
		flacTags["LENGTH"] = strconv.FormatInt(req.DurationSeconds, 10)
	}

	// Writing the same track twice must not duplicate fields.
	kept := tag.Comments[:0]

	for _, comment := range tag.Comments {
		key, _, _ := strings.Cut(comment, "=")
		if value, ok := flacTags[strings.ToUpper(key)]; ok && value != "" {
			continue
		}

		kept = append(kept, comment)
	}

	tag.Comments = kept

	for k, v := range flacTags {
		if v == "" {
			continue
		}

		if err := tag.Add(k, v); err != nil {
			return err
		}
	}

	return nil
}

func (w *WriterImpl) embedFLACCover(ctx context.Context, f *flac.File, image *Image) {
	if image == nil || len(image.Data) == 0 {
		return
	}

	picture, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "", image.Data, image.MimeType)
	if err != nil {
		logger.Errorf(ctx, "Failed to embed image to FLAC: %v", err)

		return
	}

	pictureMeta := picture.Marshal()
	f.Meta = append(f.Meta, &pictureMeta)
}

func (w *WriterImpl) writeMP3Tags(req *WriteTagsRequest) error {
	//nolint:exhaustruct // ParseFrames intentionally omitted when Parse=false (parsing disabled).
	tag, err := id3v2.Open(req.TrackPath, id3v2.Options{Parse: false})
	if err != nil {
		return err
	}

	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle(req.Title)
	tag.SetArtist(req.Artist)
	tag.SetAlbum(req.Album)

	if req.Year > 0 {
		tag.SetYear(strconv.Itoa(req.Year))
	}

	if req.DurationSeconds > 0 {
		const millisecondsInSecond = 1000

		tag.AddTextFrame(
			tag.CommonID("Length"),
			tag.DefaultEncoding(),
			strconv.FormatInt(req.DurationSeconds*millisecondsInSecond, 10),
		)
	}

	if req.Cover != nil && len(req.Cover.Data) > 0 {
		//nolint:exhaustruct // Description field intentionally empty for cover images.
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    req.Cover.MimeType,
			PictureType: id3v2.PTFrontCover,
			Picture:     req.Cover.Data,
		})
	}

	return tag.Save()
}

func mediaType(mimeType string) string {
	parsed, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}

	return parsed
}
