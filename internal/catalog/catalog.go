// Package catalog 提供讨论主题目录
// 主题在活动期间只读，由 YAML 文件加载
package catalog

import (
	"fmt"
	"os"
	"sort"

	"station_chat_server/internal/model"
	"station_chat_server/pkg/errorx"

	"gopkg.in/yaml.v3"
)

// Catalog 主题目录接口
type Catalog interface {
	// List 按序号返回全部主题
	List() []model.Topic
	// Get 根据 id 查找主题，不存在返回 NotFound
	Get(topicId string) (*model.Topic, error)
}

// TopicCatalog 内存主题目录
type TopicCatalog struct {
	topics []model.Topic
	byId   map[string]model.Topic
}

type catalogFile struct {
	Topics []model.Topic `yaml:"topics"`
}

// LoadFile 从 YAML 文件加载主题目录
func LoadFile(path string) (*TopicCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topic catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse 解析 YAML 主题目录
func Parse(data []byte) (*TopicCatalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse topic catalog: %w", err)
	}
	return New(file.Topics)
}

// New 根据主题列表构造目录，id 必须唯一且非空
func New(topics []model.Topic) (*TopicCatalog, error) {
	c := &TopicCatalog{byId: make(map[string]model.Topic, len(topics))}
	for _, t := range topics {
		if t.Id == "" {
			return nil, fmt.Errorf("topic #%d has empty id", t.Number)
		}
		if _, dup := c.byId[t.Id]; dup {
			return nil, fmt.Errorf("duplicate topic id %q", t.Id)
		}
		c.byId[t.Id] = t
		c.topics = append(c.topics, t)
	}
	sort.SliceStable(c.topics, func(i, j int) bool { return c.topics[i].Number < c.topics[j].Number })
	return c, nil
}

// List 按序号返回全部主题
func (c *TopicCatalog) List() []model.Topic {
	out := make([]model.Topic, len(c.topics))
	copy(out, c.topics)
	return out
}

// Get 根据 id 查找主题
func (c *TopicCatalog) Get(topicId string) (*model.Topic, error) {
	t, ok := c.byId[topicId]
	if !ok {
		return nil, errorx.Newf(errorx.CodeNotFound, "主题不存在: %s", topicId)
	}
	return &t, nil
}

var _ Catalog = (*TopicCatalog)(nil)
