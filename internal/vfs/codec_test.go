package vfs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	tests := []struct {
		path Path
		kind Kind
	}{
		{"/readme.txt", KindFile},
		{"/docs", KindDirectory},
		{"/docs/report.pdf", KindFile},
		{"/a/b/c/d.tar.gz", KindFile},
		{"/Photos 2024/IMG 001.JPG", KindFile},
		{"/ünïcode/файл.txt", KindFile},
		{"/a/b", KindDirectory},
		{"/.hidden", KindFile},
	}
	for _, tt := range tests {
		t.Run(string(tt.path), func(t *testing.T) {
			caption, err := DefaultCodec.Encode(tt.path, tt.kind)
			require.NoError(t, err)

			got, ok := DefaultCodec.Decode(caption)
			require.True(t, ok, "caption %q did not decode", caption)
			assert.Equal(t, tt.path, got.Path)
			assert.Equal(t, tt.kind, got.Kind)
		})
	}
}

func TestCodec_EncodeFormat(t *testing.T) {
	caption, err := DefaultCodec.Encode("/docs", KindDirectory)
	require.NoError(t, err)
	assert.Equal(t, "filestore4u_/docs/.placeholder", caption)

	caption, err = DefaultCodec.Encode("/docs/report.pdf", KindFile)
	require.NoError(t, err)
	assert.Equal(t, "filestore4u_/docs/report.pdf", caption)
}

func TestCodec_EncodeRejectsInvalidPaths(t *testing.T) {
	tests := []struct {
		name string
		path Path
		kind Kind
	}{
		{"empty", "", KindFile},
		{"root", "/", KindDirectory},
		{"relative", "docs/a.txt", KindFile},
		{"trailing slash", "/docs/", KindDirectory},
		{"double slash", "/docs//a.txt", KindFile},
		{"dot dot", "/docs/../a.txt", KindFile},
		{"placeholder as file", "/docs/.placeholder", KindFile},
		{"placeholder as dir", "/.placeholder", KindDirectory},
		{"placeholder in middle", "/.placeholder/a.txt", KindFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DefaultCodec.Encode(tt.path, tt.kind)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPath))
		})
	}
}

func TestCodec_DecodeForeign(t *testing.T) {
	for _, caption := range []string{
		"",
		"hello world",
		"Filestore4u_/a.txt",
		"FILESTORE4U_/a.txt",
		" filestore4u_/a.txt",
		"filestore4u",
		"filestore4u_",
		"filestore4u_relative.txt",
		"filestore4u_/.placeholder",
	} {
		_, ok := DefaultCodec.Decode(caption)
		assert.False(t, ok, "caption %q should not decode", caption)
	}
}

func TestCodec_DecodeDoesNotNormalize(t *testing.T) {
	got, ok := DefaultCodec.Decode("filestore4u_/a//b/../c")
	require.True(t, ok)
	assert.Equal(t, Path("/a//b/../c"), got.Path)
	assert.Equal(t, KindFile, got.Kind)
}

func TestCodec_JoinPath(t *testing.T) {
	p, err := DefaultCodec.JoinPath("/", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, Path("/a.txt"), p)

	p, err = DefaultCodec.JoinPath("/docs/", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, Path("/docs/a.txt"), p)

	p, err = DefaultCodec.JoinPath("", "docs")
	require.NoError(t, err)
	assert.Equal(t, Path("/docs"), p)

	_, err = DefaultCodec.JoinPath("/docs", "x/y")
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = DefaultCodec.JoinPath("/docs", ".placeholder")
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = DefaultCodec.JoinPath("/docs", "")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestCleanDir(t *testing.T) {
	tests := map[Path]Path{
		"":       "/",
		"/":      "/",
		"//":     "/",
		"/docs":  "/docs",
		"/docs/": "/docs",
		"docs":   "/docs",
		"/a/b//": "/a/b",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanDir(in), "CleanDir(%q)", in)
	}
}
