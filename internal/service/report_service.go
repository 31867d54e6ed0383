package service

import (
	"bytes"
	"context"
	"course_progress_backend/internal/util"
	"course_progress_backend/pkg/logger"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// ReportService 把课程指标快照导出到对象存储
type ReportService struct {
	Analytics *AnalyticsService
	Storage   *StorageService
	Now       Clock
}

func NewReportService(analytics *AnalyticsService, storage *StorageService, now Clock) *ReportService {
	return &ReportService{
		Analytics: analytics,
		Storage:   storage,
		Now:       now,
	}
}

// ReportName 导出文件的对象名
func ReportName(courseID uint, unix int64) string {
	return fmt.Sprintf("reports/course-%d-%d.json", courseID, unix)
}

// ExportCourseReport 返回导出文件的访问地址
func (s *ReportService) ExportCourseReport(ctx context.Context, courseID uint) (string, error) {
	metrics, err := s.Analytics.GetCourseMetrics(ctx, courseID)
	if err != nil {
		return "", err
	}

	raw, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode course report: %w", err)
	}

	name := ReportName(courseID, s.Now.now().Unix())
	url, err := s.Storage.Upload(ctx, name, bytes.NewReader(raw), int64(len(raw)), util.MimeJSON)
	if err != nil {
		return "", fmt.Errorf("upload course report: %w", err)
	}

	logger.Log.Info("课程报表已导出", zap.Uint("course_id", courseID), zap.String("url", url))
	return url, nil
}
