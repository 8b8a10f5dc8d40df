// Package tags writes track metadata into committed audio files (ID3v2 for MP3, Vorbis comments for FLAC).
package tags
