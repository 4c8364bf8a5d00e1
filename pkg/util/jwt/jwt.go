package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTConfig JWT 配置
type JWTConfig struct {
	Secret             string
	Issuer             string
	AccessTokenExpiry  time.Duration // Access Token 有效期
	ChannelTokenExpiry time.Duration // 实时通道 Token 有效期
}

const (
	subjectAccess  = "access_token"
	subjectChannel = "channel_token"
)

// ErrWrongTokenKind Token 类型与用途不符（例如用 access token 连接实时通道）
var ErrWrongTokenKind = errors.New("token subject mismatch")

// 全局配置，由 Init 函数初始化
var jwtConfig *JWTConfig

// Init 初始化 JWT 配置
func Init(secret, issuer string, accessExpiryMinutes, channelExpirySeconds int) {
	jwtConfig = &JWTConfig{
		Secret:             secret,
		Issuer:             issuer,
		AccessTokenExpiry:  time.Duration(accessExpiryMinutes) * time.Minute,
		ChannelTokenExpiry: time.Duration(channelExpirySeconds) * time.Second,
	}
}

// Claims 自定义 JWT 声明
// 站点设备代表一个已登录的学员，Name/Role 用于消息的作者展示
type Claims struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"session_id,omitempty"` // 仅 channel token 使用，绑定到单个会话
	jwt.RegisteredClaims
}

func sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtConfig.Secret))
}

// GenerateAccessToken 生成 Access Token（用于 HTTP 接口认证）
func GenerateAccessToken(userID, name, role string) (string, error) {
	now := time.Now()
	return sign(Claims{
		UserID: userID,
		Name:   name,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(jwtConfig.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    jwtConfig.Issuer,
			Subject:   subjectAccess,
		},
	})
}

// GenerateChannelToken 生成实时通道 Token
// 短期有效，绑定用户与会话，WebSocket 握手时校验
func GenerateChannelToken(userID, name, role, sessionID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(jwtConfig.ChannelTokenExpiry)
	token, err := sign(Claims{
		UserID:    userID,
		Name:      name,
		Role:      role,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    jwtConfig.Issuer,
			Subject:   subjectChannel,
		},
	})
	return token, expiresAt, err
}

// ParseToken 解析并验证 Token
func ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(jwtConfig.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}

// ParseAccessToken 解析 Access Token，拒绝其他用途的 Token
func ParseAccessToken(tokenString string) (*Claims, error) {
	claims, err := ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Subject != subjectAccess {
		return nil, ErrWrongTokenKind
	}
	return claims, nil
}

// ParseChannelToken 解析实时通道 Token
func ParseChannelToken(tokenString string) (*Claims, error) {
	claims, err := ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Subject != subjectChannel || claims.SessionID == "" {
		return nil, ErrWrongTokenKind
	}
	return claims, nil
}
