package constants

import "os"

const (
	// DefaultFilePermissions sets the default permissions for regular files: (rw-r--r--).
	// Owner: read and write;
	// Group: read;
	// Others: read.
	DefaultFilePermissions os.FileMode = 0o644

	// DefaultFolderPermissions sets the default permissions for regular folders: (rwxr-xr-x).
	// Owner: read, write, and execute;
	// Group: read and execute;
	// Others: read and execute.
	DefaultFolderPermissions os.FileMode = 0o755
)

// File extension constants.
const (
	ExtensionMP3  = ".mp3"
	ExtensionFLAC = ".flac"
	ExtensionM4A  = ".m4a"
	ExtensionWebM = ".webm"
	ExtensionOGG  = ".ogg"
	ExtensionAAC  = ".aac"
	ExtensionPart = ".part"
)

// Audio MIME types understood by the file sink and the tag writer.
const (
	MimeTypeMPEG = "audio/mpeg"
	MimeTypeFLAC = "audio/flac"
	MimeTypeMP4  = "audio/mp4"
	MimeTypeWebM = "audio/webm"
	MimeTypeOGG  = "audio/ogg"
	MimeTypeAAC  = "audio/aac"
)
