// Package membership 将用户身份解析为其所属小组
// 成员表联表结果在此归一为唯一的 Membership，业务层不再关心查询返回的形状
package membership

import (
	"context"

	"station_chat_server/internal/dao/mysql/repository"
	"station_chat_server/pkg/errorx"

	"go.uber.org/zap"
)

const groupStatusDisabled = 1

// Membership 用户在活动中的小组归属
type Membership struct {
	UserId    string
	GroupId   string
	GroupName string
	Role      int8
}

// membershipService 基于 group_member/group_info 表的成员关系查询
type membershipService struct {
	repos *repository.Repositories
}

// NewMembershipService 构造函数
func NewMembershipService(repos *repository.Repositories) *membershipService {
	return &membershipService{repos: repos}
}

// ResolveGroup 返回用户所属小组，不属于任何小组时返回 nil
func (s *membershipService) ResolveGroup(ctx context.Context, userId string) (*Membership, error) {
	rows, err := s.repos.WithContext(ctx).GroupMember.FindMembershipRows(userId)
	if err != nil {
		zap.L().Error("查询成员关系失败", zap.String("user_id", userId), zap.Error(err))
		return nil, err
	}
	return Normalize(userId, rows), nil
}

// Require 与 ResolveGroup 相同，但不属于任何小组时返回授权错误
func (s *membershipService) Require(ctx context.Context, userId string) (*Membership, error) {
	m, err := s.ResolveGroup(ctx, userId)
	if err != nil {
		return nil, err
	}
	if m == nil {
		zap.L().Warn("用户不属于任何小组", zap.String("user_id", userId))
		return nil, errorx.ErrForbidden
	}
	return m, nil
}

// Normalize 将联表结果归一为单个 Membership
//   - 小组记录缺失或已禁用的行被忽略
//   - 剩余多行时取最早加入的一行
func Normalize(userId string, rows []repository.MembershipRow) *Membership {
	var picked *repository.MembershipRow
	valid := 0
	for i := range rows {
		row := &rows[i]
		if row.GroupName == nil {
			continue
		}
		if row.GroupStatus != nil && *row.GroupStatus == groupStatusDisabled {
			continue
		}
		valid++
		if picked == nil || row.MemberId < picked.MemberId {
			picked = row
		}
	}
	if picked == nil {
		return nil
	}
	if valid > 1 {
		zap.L().Warn("用户属于多个小组，取最早加入的小组",
			zap.String("user_id", userId),
			zap.String("group_id", picked.GroupUuid),
			zap.Int("count", valid),
		)
	}
	return &Membership{
		UserId:    userId,
		GroupId:   picked.GroupUuid,
		GroupName: *picked.GroupName,
		Role:      picked.Role,
	}
}
