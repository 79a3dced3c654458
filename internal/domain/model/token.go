package model

import "time"

// AccessToken — одноразовый токен доступа к медиафайлу.
//
// Машина состояний: Issued → Used (терминальное) при первом успешном
// погашении; Issued → Expired (терминальное) по истечении ExpiresAt,
// обнаруживается лениво в момент погашения. Записи никогда не удаляются
// физически — остаются для аудита.
type AccessToken struct {
	// ID — внутренний идентификатор записи
	ID int64
	// Token — непрозрачное значение токена (усечённый hex SHA-256)
	Token string
	// MediaID — медиафайл, к которому привязан токен
	MediaID int64
	// UserID — пользователь, запросивший доступ
	UserID int64
	// CreatedAt — время выдачи
	CreatedAt time.Time
	// ExpiresAt — время истечения (CreatedAt + TTL, по умолчанию 1h)
	ExpiresAt time.Time
	// Used — признак погашения; переход false→true возможен ровно один раз
	Used bool
}
