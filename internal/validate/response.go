package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitushen/hostsummary/internal/models"
	"github.com/hitushen/hostsummary/internal/rules"
)

var (
	// ErrValidation 是所有模型输出校验失败的根错误。
	ErrValidation = errors.New("response validation failed")
	// ErrMalformedResponse 表示清洗后的文本无法解析为 JSON。
	ErrMalformedResponse = fmt.Errorf("%w: malformed response", ErrValidation)
	// ErrSchemaViolation 表示 JSON 不符合 HostSummary 结构。
	ErrSchemaViolation = fmt.Errorf("%w: schema violation", ErrValidation)
)

const fence = "```"

var structValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Clean 去掉 markdown 代码块包裹，并截取第一个 { 到最后一个 } 之间的内容。
// 找不到花括号时原样返回，交由后续解析报错。
func Clean(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, fence+"json") {
		text = text[len(fence+"json"):]
	} else if strings.HasPrefix(text, fence) {
		text = text[len(fence):]
	}
	text = strings.TrimSuffix(text, fence)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end != -1 && start < end {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// CleanAndParse 清洗模型输出并校验为 HostSummary，host_id 始终以调用方传入的值为准。
func CleanAndParse(raw, hostID string) (models.HostSummary, error) {
	cleaned := Clean(raw)
	if !json.Valid([]byte(cleaned)) {
		return models.HostSummary{}, fmt.Errorf("%w: invalid JSON (%d bytes)", ErrMalformedResponse, len(cleaned))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil || fields == nil {
		return models.HostSummary{}, fmt.Errorf("%w: top-level value is not an object", ErrSchemaViolation)
	}
	id, _ := json.Marshal(hostID)
	fields["host_id"] = id

	normalized, err := json.Marshal(fields)
	if err != nil {
		return models.HostSummary{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	var summary models.HostSummary
	if err := json.Unmarshal(normalized, &summary); err != nil {
		return models.HostSummary{}, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	if err := Summary(summary); err != nil {
		return models.HostSummary{}, err
	}

	if summary.KeyServices == nil {
		summary.KeyServices = []models.KeyService{}
	}
	if summary.Recommendations == nil {
		summary.Recommendations = []string{}
	}
	if len(summary.Recommendations) > rules.MaxRecommendations {
		summary.Recommendations = summary.Recommendations[:rules.MaxRecommendations]
	}
	return summary, nil
}

// Summary 校验必填字段与风险等级枚举。
func Summary(summary models.HostSummary) error {
	if err := structValidator.Struct(summary); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	return nil
}
