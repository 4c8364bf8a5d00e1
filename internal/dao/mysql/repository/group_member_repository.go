// Package repository 提供数据访问层的具体实现
// 本文件实现 GroupMemberRepository 接口，处理小组成员相关的数据库操作
package repository

import (
	"station_chat_server/internal/model"

	"gorm.io/gorm"
)

// groupMemberRepository GroupMemberRepository 接口的实现
type groupMemberRepository struct {
	db *gorm.DB
}

// NewGroupMemberRepository 创建 GroupMemberRepository 实例
func NewGroupMemberRepository(db *gorm.DB) GroupMemberRepository {
	return &groupMemberRepository{db: db}
}

// FindMembershipRows 联表查询用户所在小组
// LEFT JOIN 在小组缺失时仍返回成员行，GroupUuid 以成员表为准，由上层决定如何归一
func (r *groupMemberRepository) FindMembershipRows(userUuid string) ([]MembershipRow, error) {
	var rows []MembershipRow
	if err := r.db.Table("group_member").
		Select("group_member.id as member_id, group_member.user_uuid, group_member.group_uuid, group_member.role, "+
			"group_info.name as group_name, group_info.status as group_status").
		Joins("LEFT JOIN group_info ON group_member.group_uuid = group_info.uuid AND group_info.deleted_at IS NULL").
		Where("group_member.user_uuid = ? AND group_member.deleted_at IS NULL", userUuid).
		Order("group_member.id ASC").
		Scan(&rows).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询成员关系 user_uuid=%s", userUuid)
	}
	return rows, nil
}

// Create 添加小组成员
func (r *groupMemberRepository) Create(member *model.GroupMember) error {
	if err := r.db.Create(member).Error; err != nil {
		return wrapDBError(err, "创建小组成员")
	}
	return nil
}
