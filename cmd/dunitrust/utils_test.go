package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfileDirDefaultsUnderDataDir(t *testing.T) {
	assert.Equal(t, filepath.Join("/tmp/data", "default"), profileDir("/tmp/data"))
}

func TestProfileDirFallsBackToDefaultDataDir(t *testing.T) {
	got := profileDir("")
	assert.Equal(t, "default", filepath.Base(got))
}
