package cache

// KeyFilePath caches the Bot API file_path resolved for a file_id.
func KeyFilePath(fileRef string) string {
	return Key("files", "path", fileRef)
}
