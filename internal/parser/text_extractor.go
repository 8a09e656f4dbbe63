package parser

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
)

// TextExtractor 从原始简历文件中提取纯文本
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, filename string) (string, error)
}

// ResumeTextExtractor 按文件扩展名分发：PDF走Eino PDF Parser，
// 纯文本格式(.txt/.md)直接读取。
type ResumeTextExtractor struct {
	pdfParser *pdf.PDFParser
	logger    *log.Logger
}

// 确保ResumeTextExtractor实现了TextExtractor接口
var _ TextExtractor = (*ResumeTextExtractor)(nil)

// NewResumeTextExtractor 初始化文本提取器。
// PDF解析配置为不按页面分割，整个文档作为单个字符串返回。
func NewResumeTextExtractor(ctx context.Context, logger *log.Logger) (*ResumeTextExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false,
	})
	if err != nil {
		return nil, fmt.Errorf("创建Eino PDF解析器失败: %w", err)
	}

	if logger == nil {
		logger = log.New(os.Stderr, "[文本提取器] ", log.LstdFlags)
	}

	return &ResumeTextExtractor{
		pdfParser: p,
		logger:    logger,
	}, nil
}

// ExtractText 提取简历文件的纯文本内容
func (e *ResumeTextExtractor) ExtractText(ctx context.Context, data []byte, filename string) (string, error) {
	ext := strings.ToLower(fileExt(filename))

	switch ext {
	case ".pdf":
		return e.extractPDF(ctx, data, filename)
	case ".txt", ".md":
		return string(data), nil
	case ".doc", ".docx":
		// Word文档暂无专用解析器，尝试直接按文本读取，
		// 二进制内容会在LLM抽取阶段因文本无效而失败。
		return string(data), nil
	default:
		return "", fmt.Errorf("不支持的文件类型: %s", ext)
	}
}

// extractPDF 使用Eino PDF Parser提取PDF文本
func (e *ResumeTextExtractor) extractPDF(ctx context.Context, data []byte, filename string) (string, error) {
	startTime := time.Now()
	e.logger.Printf("开始从PDF提取文本: %s (%.2f MB)", filename, float64(len(data))/1024/1024)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	docs, err := e.pdfParser.Parse(ctx, bytes.NewReader(data),
		einoParser.WithURI(filename),
		einoParser.WithExtraMeta(map[string]interface{}{
			"extraction_time": time.Now().Format(time.RFC3339),
		}),
	)

	duration := time.Since(startTime)
	if err != nil {
		e.logger.Printf("PDF提取失败: %s (用时 %.2f秒)", err, duration.Seconds())
		return "", fmt.Errorf("eino PDF解析 %s 失败: %w", filename, err)
	}

	if len(docs) == 0 {
		return "", fmt.Errorf("eino PDF解析 %s 未返回文档", filename)
	}

	var sb strings.Builder
	for i, doc := range docs {
		sb.WriteString(doc.Content)
		if i < len(docs)-1 {
			sb.WriteString("\n\n")
		}
	}

	fullContent := sb.String()
	e.logger.Printf("PDF提取完成: 提取了 %d 个字符 (用时 %.2f秒)", len(fullContent), duration.Seconds())
	return fullContent, nil
}

// fileExt 返回文件名的扩展名，包含点号
func fileExt(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return ""
	}
	return filename[idx:]
}
