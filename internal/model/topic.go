package model

// Topic 讨论主题（站点），只读，由主题目录文件提供
type Topic struct {
	Id      string   `yaml:"id" json:"id"`
	Number  int      `yaml:"number" json:"number"`
	Title   string   `yaml:"title" json:"title"`
	Prompts []string `yaml:"prompts" json:"prompts"`
	Tip     string   `yaml:"tip,omitempty" json:"tip,omitempty"`
}
