package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/signintech/gopdf"

	"tcm-backend/sessions"
)

// CJK-capable fonts, tried in order. Noto Sans CJK ships in the
// deployment image; the downloads path covers local development.
var fontPaths = []string{
	"/usr/share/fonts/opentype/noto/NotoSansCJK-Regular.ttc",
	"/usr/share/fonts/noto-cjk/NotoSansCJK-Regular.ttc",
	"/usr/share/fonts/truetype/wqy/wqy-zenhei.ttc",
	"./fonts/NotoSansSC-Regular.ttf",
}

// RenderPDF lays out the stored diagnostic report as a printable
// document for doctor records.
func RenderPDF(s *sessions.Session) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	fontLoaded := false
	var fontErr error
	for _, path := range fontPaths {
		if err := pdf.AddTTFFont("cjk", path); err == nil {
			fontLoaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !fontLoaded {
		return nil, fmt.Errorf("no CJK font available for PDF export: %w", fontErr)
	}

	if err := pdf.SetFont("cjk", "", 18); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "中医诊断报告")
	pdf.Br(28)

	if err := pdf.SetFont("cjk", "", 11); err != nil {
		return nil, err
	}
	pdf.Cell(nil, fmt.Sprintf("报告编号：%s", s.ID))
	pdf.Br(14)
	pdf.Cell(nil, fmt.Sprintf("生成时间：%s", time.Now().Format("2006-01-02 15:04")))
	pdf.Br(14)
	if s.Degraded {
		pdf.Cell(nil, "状态：待医师复核（AI 分析未完成）")
	} else {
		pdf.Cell(nil, fmt.Sprintf("状态：已生成（模型：%s）", s.ModelUsed))
	}
	pdf.Br(22)

	writeSection(&pdf, "辨证结论", stringField(s.Report, "syndrome"))
	writeSection(&pdf, "四诊合参分析", stringField(s.Report, "analysis"))
	for _, rec := range stringSlice(s.Report, "recommendations") {
		writeBody(&pdf, "· "+rec)
	}
	if note := stringField(s.Report, "herbs_note"); note != "" {
		pdf.Br(8)
		writeSection(&pdf, "方药方向（须医师确认）", note)
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSection(pdf *gopdf.GoPdf, title, body string) {
	if body == "" {
		return
	}
	_ = pdf.SetFont("cjk", "", 13)
	pdf.Cell(nil, title)
	pdf.Br(16)
	writeBody(pdf, body)
	pdf.Br(8)
}

func writeBody(pdf *gopdf.GoPdf, body string) {
	_ = pdf.SetFont("cjk", "", 11)
	lines, _ := pdf.SplitText(body, 500)
	for _, l := range lines {
		pdf.Cell(nil, l)
		pdf.Br(13)
	}
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func stringSlice(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
