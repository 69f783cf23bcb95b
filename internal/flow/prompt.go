package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"promptcraft/internal/datauri"
	"promptcraft/internal/genai/model"
)

// media 占位符的分隔符，data URI 中不会出现 NUL
const mediaDelim = "\x00"

// Prompt 将模型客户端与一段指令模板绑定
// 模板中使用 {{media .Field}} 嵌入图片（data URI）
type Prompt[I, O any] struct {
	name   string
	client model.Client
	tmpl   *template.Template
	output *model.OutputSchema
}

// DefinePrompt 解析模板并生成输出 schema
func DefinePrompt[I, O any](client model.Client, name, text string) (*Prompt[I, O], error) {
	tmpl, err := template.New(name).
		Option("missingkey=error").
		Funcs(template.FuncMap{"media": mediaPlaceholder}).
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template %s: %w", name, err)
	}

	return &Prompt[I, O]{
		name:   name,
		client: client,
		tmpl:   tmpl,
		output: &model.OutputSchema{
			Name:        schemaName(new(O)),
			Description: fmt.Sprintf("Structured output of %s", name),
			Schema:      reflectSchema(new(O)),
		},
	}, nil
}

// Name 返回 prompt 名称
func (p *Prompt[I, O]) Name() string {
	return p.name
}

func mediaPlaceholder(uri string) string {
	return mediaDelim + uri + mediaDelim
}

// Render 渲染模板，按 media 占位符切分为文本与图片两类 Part
func (p *Prompt[I, O]) Render(in I) ([]model.Part, error) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, in); err != nil {
		return nil, fmt.Errorf("failed to render prompt %s: %w", p.name, err)
	}

	var parts []model.Part
	// 切分后奇数下标为 media 内容
	for i, segment := range strings.Split(buf.String(), mediaDelim) {
		if i%2 == 1 {
			media, err := datauri.Parse(segment)
			if err != nil {
				return nil, err
			}
			parts = append(parts, model.Part{Media: media})
			continue
		}
		if text := strings.TrimSpace(segment); text != "" {
			parts = append(parts, model.Part{Text: text})
		}
	}
	return parts, nil
}

// Generate 渲染 prompt 并调用模型，将 JSON 输出解析为 O
// 模型返回空文本或 null 时返回 (nil, nil)，由 Flow 转换为 ErrNoOutput
func (p *Prompt[I, O]) Generate(ctx context.Context, in I) (*O, error) {
	parts, err := p.Render(in)
	if err != nil {
		return nil, &InputError{Flow: p.name, Err: err}
	}

	resp, err := p.client.Generate(ctx, &model.Request{
		Name:   p.name,
		Parts:  parts,
		Output: p.output,
	})
	if err != nil {
		return nil, err
	}

	text := stripCodeFence(resp.Text)
	if text == "" || text == "null" {
		return nil, nil
	}

	var out O
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	return &out, nil
}

// stripCodeFence 去掉模型偶尔包裹在 JSON 外面的 ```json 代码块
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
