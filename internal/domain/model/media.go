// Пакет model — доменные модели Catalog Module.
// MediaItem — маппинг таблицы media_items (каталог медиафайлов).
package model

import "time"

// MediaItem — запись медиафайла в каталоге.
// Идентификатор присваивается при создании и никогда не меняется;
// повторная загрузка с тем же FileRef обновляет остальные поля (upsert).
type MediaItem struct {
	// ID — внутренний числовой идентификатор (BIGSERIAL)
	ID int64
	// Name — нормализованное человекочитаемое название
	Name string
	// Caption — исходное описание (опционально)
	Caption *string
	// Keywords — упорядоченный набор токенов из имени и описания,
	// дубликаты удалены с сохранением первого вхождения
	Keywords []string
	// FileRef — непрозрачный идентификатор файла в хранилище.
	// Не разбирается, только хранится и отдаётся дальше.
	FileRef string
	// AccessHash — непрозрачный хэш доступа к файлу
	AccessHash string
	// IsDocument — true, если файл пришёл как generic-вложение,
	// а не как нативный видеообъект
	IsDocument bool
	// UploadDate — время последней загрузки, обновляется при re-upload
	UploadDate time.Time
}
