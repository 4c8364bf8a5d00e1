package model

import "gorm.io/gorm"

// GroupMember 小组成员关联表
type GroupMember struct {
	gorm.Model
	GroupUuid string `gorm:"column:group_uuid;type:char(20);uniqueIndex:idx_group_user;not null;comment:小组ID"`
	UserUuid  string `gorm:"column:user_uuid;type:char(20);uniqueIndex:idx_group_user;index;not null;comment:用户ID"`
	Role      int8   `gorm:"column:role;default:1;comment:1组员 2组长"`
}

func (GroupMember) TableName() string {
	return "group_member"
}
