package model

import (
	"gorm.io/gorm"
)

// GroupInfo 讨论小组
type GroupInfo struct {
	gorm.Model
	Uuid   string `gorm:"column:uuid;uniqueIndex;type:char(20);not null;comment:小组唯一id"`
	Name   string `gorm:"column:name;type:varchar(50);not null;comment:小组名称"`
	Status int8   `gorm:"column:status;default:0;comment:状态，0.正常，1.禁用"`
}

func (GroupInfo) TableName() string {
	return "group_info"
}
