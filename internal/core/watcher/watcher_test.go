package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNew_RejectsNilCallback(t *testing.T) {
	w, err := New(100*time.Millisecond, nil, nil, nil)
	if err == nil {
		t.Fatal("expected error for nil callback")
	}
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func TestWatcher(t *testing.T) {
	tmpDir, _ := os.MkdirTemp("", "watchertest")
	defer os.RemoveAll(tmpDir)

	changedFiles := make(chan []string, 1)
	w, err := New(100*time.Millisecond, []string{"build"}, []string{"*.swp"}, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	err = w.Watch([]string{tmpDir})
	if err != nil {
		t.Fatal(err)
	}

	testFile := filepath.Join(tmpDir, "Widget.groovy")
	os.WriteFile(testFile, []byte("class Widget {}"), 0644)

	select {
	case paths := <-changedFiles:
		found := false
		for _, p := range paths {
			if p == testFile {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected to find %s in changed files %v", testFile, paths)
		}
	case <-time.After(2 * time.Second):
		t.Error("Timed out waiting for file change event")
	}

	// Filtered extension must not trigger.
	otherFile := filepath.Join(tmpDir, "notes.txt")
	os.WriteFile(otherFile, []byte("ignore me"), 0644)

	select {
	case paths := <-changedFiles:
		for _, p := range paths {
			if filepath.Base(p) == "notes.txt" {
				t.Error("Filtered file triggered event")
			}
		}
	case <-time.After(500 * time.Millisecond):
		// Expected
	}

	// New directory should be recursively watched after create.
	subdir := filepath.Join(tmpDir, "newdir")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatal(err)
	}
	subFile := filepath.Join(subdir, "Nested.groovy")
	if err := os.WriteFile(subFile, []byte("class Nested {}"), 0644); err != nil {
		t.Fatal(err)
	}

	foundNested := false
	timeout := time.After(2 * time.Second)
	for !foundNested {
		select {
		case paths := <-changedFiles:
			for _, p := range paths {
				if p == subFile {
					foundNested = true
					break
				}
			}
		case <-timeout:
			t.Fatal("timed out waiting for nested file event in newly created directory")
		}
	}
}

func TestWatcher_RenameTriggersChange(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "watcher-rename")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	changedFiles := make(chan []string, 8)
	w, err := New(100*time.Millisecond, nil, nil, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	oldPath := filepath.Join(tmpDir, "Old.groovy")
	newPath := filepath.Join(tmpDir, "New.groovy")
	if err := os.WriteFile(oldPath, []byte("class Old {}"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(2 * time.Second)
	for {
		select {
		case paths := <-changedFiles:
			for _, p := range paths {
				if p == oldPath || p == newPath {
					return
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for rename event, old=%s new=%s", oldPath, newPath)
		}
	}
}

func TestWatcher_Filters(t *testing.T) {
	changedFiles := make(chan []string, 1)
	w, err := New(10*time.Millisecond, nil, nil, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if w.shouldExcludeFile("main.py") == false {
		t.Fatal("expected unrelated extensions to be excluded")
	}
	if w.shouldExcludeFile("Widget.groovy") {
		t.Fatal("expected .groovy to pass the extension filter")
	}
	if w.shouldExcludeFile("Helper.java") {
		t.Fatal("expected .java to pass the extension filter")
	}
	if w.shouldExcludeFile("build.gradle") {
		t.Fatal("expected build.gradle to be included via filename filter")
	}
	if w.shouldExcludeFile("pom.xml") {
		t.Fatal("expected pom.xml to be included via filename filter")
	}
	if w.shouldExcludeFile("Widget.groovy.swp") == false {
		t.Fatal("expected unrelated suffixes to be excluded")
	}
}
