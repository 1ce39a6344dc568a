package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderUpload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderUpload(&buf, UploadPage{MaxSize: "25 MB"}))
	out := buf.String()
	assert.Contains(t, out, `name="file"`)
	assert.Contains(t, out, `enctype="multipart/form-data"`)
	assert.Contains(t, out, "Up to 25 MB.")
	assert.Contains(t, out, "PAPERLINK")
}

func TestRenderUploadedEscapes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderUploaded(&buf, UploadedPage{
		Link:     "https://paper.example/s/abc",
		FileName: `<script>x</script>.txt`,
		Size:     "1.0 KiB",
	}))
	out := buf.String()
	assert.Contains(t, out, `value="https://paper.example/s/abc"`)
	assert.Contains(t, out, "Copy link")
	assert.NotContains(t, out, "<script>x</script>")
	assert.Contains(t, out, "&lt;script&gt;")
}
