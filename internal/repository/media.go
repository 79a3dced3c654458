package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/gomediabot/internal/domain/model"
)

// mediaColumns — список столбцов таблицы media_items для SELECT-запросов.
// DRY: одно место для всех полных SELECT'ов.
const mediaColumns = `id, name, caption, keywords, file_ref, access_hash, is_document, upload_date`

// MediaRepository — интерфейс доступа к каталогу медиафайлов.
type MediaRepository interface {
	// Upsert создаёт запись или обновляет существующую с тем же FileRef.
	// При обновлении ID сохраняется; name/caption/keywords/access_hash/
	// upload_date перезаписываются. Возвращает true, если запись создана.
	Upsert(ctx context.Context, m *model.MediaItem) (created bool, err error)
	// GetByID возвращает медиафайл по идентификатору.
	GetByID(ctx context.Context, id int64) (*model.MediaItem, error)
	// SearchRanked выполняет многоуровневый ранжированный поиск.
	// Возвращает окно результатов и общее количество совпадений,
	// вычисленные одним запросом (один логический снимок каталога).
	SearchRanked(ctx context.Context, term string, words []string, limit, offset int) ([]*model.MediaItem, int, error)
}

// mediaRepo — реализация MediaRepository через pgx.
type mediaRepo struct {
	db DBTX
}

// NewMediaRepository создаёт репозиторий каталога.
func NewMediaRepository(db DBTX) MediaRepository {
	return &mediaRepo{db: db}
}

func (r *mediaRepo) Upsert(ctx context.Context, m *model.MediaItem) (bool, error) {
	query := `
		INSERT INTO media_items (name, caption, keywords, file_ref, access_hash, is_document, upload_date)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (file_ref) DO UPDATE SET
			name = EXCLUDED.name,
			caption = EXCLUDED.caption,
			keywords = EXCLUDED.keywords,
			access_hash = EXCLUDED.access_hash,
			is_document = EXCLUDED.is_document,
			upload_date = EXCLUDED.upload_date
		RETURNING id, upload_date, (xmax = 0) AS is_insert`

	var isInsert bool
	err := r.db.QueryRow(ctx, query,
		m.Name, m.Caption, m.Keywords, m.FileRef, m.AccessHash, m.IsDocument,
	).Scan(&m.ID, &m.UploadDate, &isInsert)
	if err != nil {
		return false, fmt.Errorf("ошибка upsert медиафайла: %w", err)
	}
	return isInsert, nil
}

func (r *mediaRepo) GetByID(ctx context.Context, id int64) (*model.MediaItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM media_items WHERE id = $1`, mediaColumns)

	m := &model.MediaItem{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.Name, &m.Caption, &m.Keywords, &m.FileRef,
		&m.AccessHash, &m.IsDocument, &m.UploadDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения медиафайла: %w", err)
	}
	return m, nil
}

// searchRankedQuery — многоуровневое ранжирование совпадений.
//
// Уровни (выигрывает высший):
//
//	100 — нормализованное имя равно запросу;
//	 90 — имя начинается с запроса;
//	 85 — каждое слово запроса встречается в имени (в любом порядке);
//	 80 — имя содержит запрос как подстроку;
//	 70 — точный запрос присутствует в наборе ключевых слов;
//	 60 — хотя бы одно ключевое слово содержит запрос как подстроку.
//
// Кандидаты — логическое ИЛИ всех ненулевых условий. При равном ранге
// первыми идут более свежие записи. Общее количество считается тем же
// запросом через COUNT(*) OVER() — без второго запроса и без расхождения
// счётчика с окном при конкурентных записях в каталог.
const searchRankedQuery = `
	WITH ranked AS (
		SELECT
			id, name, caption, file_ref, is_document, upload_date,
			CASE
				WHEN LOWER(name) = $1 THEN 100
				WHEN LOWER(name) LIKE $2 THEN 90
				WHEN (
					SELECT bool_and(LOWER(name) LIKE '%' || word || '%')
					FROM unnest($3::text[]) AS word
				) THEN 85
				WHEN LOWER(name) LIKE $4 THEN 80
				WHEN $1 = ANY(keywords) THEN 70
				WHEN EXISTS (
					SELECT 1 FROM unnest(keywords) k
					WHERE k LIKE $4
				) THEN 60
				ELSE 0
			END AS rank
		FROM media_items
		WHERE
			LOWER(name) = $1
			OR LOWER(name) LIKE $2
			OR LOWER(name) LIKE $4
			OR $1 = ANY(keywords)
			OR EXISTS (
				SELECT 1 FROM unnest(keywords) k
				WHERE k LIKE $4
			)
			OR (
				SELECT bool_and(LOWER(name) LIKE '%' || word || '%')
				FROM unnest($3::text[]) AS word
			)
	)
	SELECT COUNT(*) OVER() AS total,
		id, name, caption, file_ref, is_document, upload_date
	FROM ranked
	WHERE rank > 0
	ORDER BY rank DESC, upload_date DESC
	LIMIT $5 OFFSET $6`

func (r *mediaRepo) SearchRanked(ctx context.Context, term string, words []string, limit, offset int) ([]*model.MediaItem, int, error) {
	rows, err := r.db.Query(ctx, searchRankedQuery,
		term,          // $1 — точное совпадение / точный ключ
		term+"%",      // $2 — префикс
		words,         // $3 — все слова в любом порядке
		"%"+term+"%",  // $4 — подстрока (имя и ключевые слова)
		limit, offset, // $5, $6 — окно
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка ранжированного поиска: %w", err)
	}
	defer rows.Close()

	var (
		result []*model.MediaItem
		total  int
	)
	for rows.Next() {
		m := &model.MediaItem{}
		if err := rows.Scan(
			&total,
			&m.ID, &m.Name, &m.Caption, &m.FileRef, &m.IsDocument, &m.UploadDate,
		); err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования результата поиска: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка итерации результатов поиска: %w", err)
	}

	return result, total, nil
}
