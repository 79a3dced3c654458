package model

import "time"

// DailyStats — агрегированные счётчики за один день (таблица daily_stats).
// Строка дня создаётся upsert'ом один раз, далее инкрементируется/пересчитывается.
type DailyStats struct {
	// StatDate — день агрегата (уникален)
	StatDate time.Time
	// TotalUsers — всего пользователей
	TotalUsers int
	// ActiveUsersToday — активные за последние 24 часа
	ActiveUsersToday int
	// ActiveUsersMonth — активные за последние 30 дней
	ActiveUsersMonth int
	// PremiumUsers — пользователи с действующей premium-подпиской
	PremiumUsers int
	// SearchesToday — поисков за текущий день
	SearchesToday int
	// TotalVideos — всего записей в каталоге
	TotalVideos int
	// UpdatedAt — время последнего пересчёта
	UpdatedAt time.Time
}

// TermCount — счётчик поискового запроса за день (таблица term_counters).
type TermCount struct {
	// Term — нормализованный поисковый запрос
	Term string
	// Count — количество поисков за день
	Count int
}

// User — отслеживаемый пользователь бота (таблица users).
// Catalog Module только регистрирует активность; учёт подписок — внешний.
type User struct {
	UserID     int64
	Username   *string
	FirstName  *string
	LastName   *string
	JoinedDate time.Time
	LastActive time.Time
}
