package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"course_progress_backend/internal/config"
	"course_progress_backend/internal/model"
	"course_progress_backend/internal/util"
)

func TestLocalStorageProviderKeepsFilesUnderRoot(t *testing.T) {
	root := t.TempDir()
	storage := NewStorageService(&config.StorageConfig{Type: util.StorageLocal, LocalPath: root})
	ctx := context.Background()

	url, err := storage.Upload(ctx, "../../escape/report.json", strings.NewReader("{}"), 2, util.MimeJSON)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "/uploads/escape/report.json" {
		t.Fatalf("url = %q", url)
	}
	if _, err := os.Stat(filepath.Join(root, "escape", "report.json")); err != nil {
		t.Fatalf("file not written under root: %v", err)
	}

	if err := storage.Delete(ctx, "../../escape/report.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "escape", "report.json")); !os.IsNotExist(err) {
		t.Fatalf("file still present: %v", err)
	}
}

func TestNewStorageServiceDefaultsToLocal(t *testing.T) {
	storage := NewStorageService(&config.StorageConfig{Type: "unknown", LocalPath: t.TempDir()})
	if _, ok := storage.Provider.(*LocalStorageProvider); !ok {
		t.Fatalf("provider = %T, want *LocalStorageProvider", storage.Provider)
	}
}

func TestExportCourseReport(t *testing.T) {
	f := newFixture(t)
	course, _ := f.course(t, 2)
	root := t.TempDir()

	reports := NewReportService(f.analytics, NewStorageService(&config.StorageConfig{Type: util.StorageLocal, LocalPath: root}), f.clock.Func())

	url, err := reports.ExportCourseReport(context.Background(), course.ID)
	if err != nil {
		t.Fatalf("ExportCourseReport: %v", err)
	}

	name := ReportName(course.ID, testNow.Unix())
	if url != "/uploads/"+name {
		t.Fatalf("url = %q", url)
	}

	raw, err := os.ReadFile(filepath.Join(root, name))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var metrics model.CourseMetrics
	if err := json.Unmarshal(raw, &metrics); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if metrics.CourseID != course.ID || metrics.CourseTitle != course.Title {
		t.Fatalf("report = %+v", metrics)
	}
}
