package pipeline

// Template is a toolbar preset for AddNode.
type Template struct {
	Label    string
	Script   string
	Category Category
	Params   map[string]any
}

// Templates are the built-in presets, one group per category.
var Templates = []Template{
	{Label: "新闻采集", Script: "crawl_news", Category: CategorySpider, Params: map[string]any{"depth": 1}},
	{Label: "列表采集", Script: "crawl_list", Category: CategorySpider, Params: map[string]any{"pages": 5}},
	{Label: "验证码识别", Script: "ai_captcha", Category: CategoryAI, Params: map[string]any{"model": "default"}},
	{Label: "文本分类", Script: "ai_classify", Category: CategoryAI, Params: map[string]any{}},
	{Label: "数据清洗", Script: "clean_text", Category: CategoryProcess, Params: map[string]any{"strip_html": true}},
	{Label: "去重", Script: "dedupe", Category: CategoryProcess, Params: map[string]any{"key": "url"}},
	{Label: "导出CSV", Script: "export_csv", Category: CategoryData, Params: map[string]any{"path": "out.csv"}},
	{Label: "入库", Script: "save_db", Category: CategoryData, Params: map[string]any{}},
}

// TemplatesFor returns the presets of one category.
func TemplatesFor(c Category) []Template {
	var out []Template
	for _, t := range Templates {
		if t.Category == c {
			out = append(out, t)
		}
	}
	return out
}

// ScriptTemplates turns backend script names into spider presets, the way
// the module list populates the toolbar.
func ScriptTemplates(scripts []string) []Template {
	out := make([]Template, len(scripts))
	for i, s := range scripts {
		out[i] = Template{Label: s, Script: s, Category: CategorySpider, Params: map[string]any{}}
	}
	return out
}

// AddFromTemplate adds a node built from t at (x, y).
func (g *Graph) AddFromTemplate(t Template, x, y float64) (string, error) {
	return g.AddNode(x, y, t.Script, WithCategory(t.Category), WithParams(t.Params))
}
