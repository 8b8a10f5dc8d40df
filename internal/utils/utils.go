package utils

import (
	"bufio"
	"math"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/oshokin/trackvault/internal/constants"
)

// MaxFilenameLength is the maximum length, in runes, of a generated file name without its extension.
const MaxFilenameLength = 200

var (
	// invalidCharsPattern includes ASCII control characters (0-31) and Windows-restricted characters: < > : " / \ | ? *.
	//nolint:gochecknoglobals // This is immutable, pre-compiled regex pattern and used as a constant.
	invalidCharsPattern = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)

	// textContentTypePatterns matches content types that are safe to dump into logs.
	//nolint:gochecknoglobals // These are immutable, pre-compiled regex patterns and used as constants.
	textContentTypePatterns = []*regexp.Regexp{
		regexp.MustCompile("^text/.+"),
		regexp.MustCompile("^application/json$"),
		regexp.MustCompile(`^application/graphql-response\+json$`),
	}

	// windowsReservedNames is a map of filenames that are reserved on Windows systems.
	//nolint:gochecknoglobals // This is an immutable map used as a constant for validation purposes.
	windowsReservedNames = map[string]struct{}{
		"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
		"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
		"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
		"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
		"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
	}

	// audioExtensions maps a stream MIME type to the extension of the committed file.
	//nolint:gochecknoglobals // This is an immutable lookup table.
	audioExtensions = map[string]string{
		constants.MimeTypeMPEG: constants.ExtensionMP3,
		constants.MimeTypeWebM: constants.ExtensionWebM,
		constants.MimeTypeOGG:  constants.ExtensionOGG,
		constants.MimeTypeMP4:  constants.ExtensionM4A,
		constants.MimeTypeAAC:  constants.ExtensionAAC,
		constants.MimeTypeFLAC: constants.ExtensionFLAC,
	}
)

// SafeUint64ToInt64 converts a uint64 value to an int64 safely,
// ensuring that the value does not exceed the maximum limit of int64.
func SafeUint64ToInt64(val uint64) int64 {
	if val > math.MaxInt64 {
		return math.MaxInt64
	}

	return int64(val)
}

// SanitizeFilename sanitizes a filename or folder name to be valid on both Windows and Unix-like systems.
// It replaces invalid characters, handles Windows reserved names, and ensures the filename is not empty.
func SanitizeFilename(name string) string {
	if name == "" {
		return ""
	}

	result := invalidCharsPattern.ReplaceAllString(name, "_")

	baseName := result
	if dotIndex := strings.LastIndex(result, "."); dotIndex != -1 {
		baseName = result[:dotIndex]
	}

	if _, ok := windowsReservedNames[strings.ToUpper(baseName)]; ok {
		result = "_" + result
	}

	result = strings.TrimRight(result, ".")

	if result == "" {
		result = "_"
	}

	return result
}

// TruncateRunes cuts s to at most maxRunes runes.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}

	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}

	return string(runes[:maxRunes])
}

// TrackFilename builds the deterministic "<artist> - <title><ext>" name of a committed track.
func TrackFilename(artist, title, mimeType string) string {
	base := SanitizeFilename(strings.TrimSpace(artist) + " - " + strings.TrimSpace(title))

	return TruncateRunes(base, MaxFilenameLength) + AudioExtension(mimeType)
}

// TrackFilenameWithSuffix builds "<artist> - <title> [<suffix>]<ext>".
// The artist and title part is shortened so that the suffix always survives the length limit.
func TrackFilenameWithSuffix(artist, title, suffix, mimeType string) string {
	tag := " [" + SanitizeFilename(strings.TrimSpace(suffix)) + "]"
	base := SanitizeFilename(strings.TrimSpace(artist) + " - " + strings.TrimSpace(title))

	return TruncateRunes(base, max(MaxFilenameLength-utf8.RuneCountInString(tag), 1)) + tag + AudioExtension(mimeType)
}

// AudioExtension returns the file extension for a stream MIME type.
// Parameters such as codecs are ignored; unknown types map to ".m4a".
func AudioExtension(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(mimeType))
	}

	if ext, ok := audioExtensions[mediaType]; ok {
		return ext
	}

	return constants.ExtensionM4A
}

// IsFileExist checks if a file exists at the specified path.
// It returns true if the file exists and is not a directory, false if the file does not exist,
// and an error if there was an issue accessing the file.
func IsFileExist(path string) (bool, error) {
	stat, err := os.Stat(path)
	if err == nil {
		return !stat.IsDir(), nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

// ReadUniqueLinesFromFile reads a text file and returns a slice of unique non-empty lines.
// Lines starting with '#' are treated as comments.
func ReadUniqueLinesFromFile(path string) ([]string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	defer file.Close() //nolint:errcheck // Error on close is not critical here.

	var (
		uniqueLines = make(map[string]struct{})
		lines       []string
		scanner     = bufio.NewScanner(file)
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if _, exists := uniqueLines[line]; !exists {
			uniqueLines[line] = struct{}{}

			lines = append(lines, line)
		}
	}

	if err = scanner.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// IsTextContentType checks if the given content type represents a text-based format.
// It also checks that the charset, if present, is either "utf-8" or "us-ascii".
func IsTextContentType(contentType string) bool {
	parsedType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	for _, pattern := range textContentTypePatterns {
		if !pattern.MatchString(parsedType) {
			continue
		}

		charset := strings.ToLower(params["charset"])

		return charset == "" || charset == "utf-8" || charset == "us-ascii"
	}

	return false
}
