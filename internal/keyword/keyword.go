// Пакет keyword — извлечение поисковых ключевых слов из названий
// и описаний медиафайлов. Чистые функции без зависимостей.
package keyword

import (
	"regexp"
	"strings"
)

// qualityAttributes — словарь атрибутов качества/формата.
// Пары соседних слов, чья склейка содержит один из атрибутов,
// дополнительно выдаются как составной ключ ("movie 1080p").
var qualityAttributes = []string{
	"1080p", "720p", "480p", "2160p",
	"hdrip", "webrip", "brrip", "dvdrip",
	"malaydub", "malaysub",
}

// yearRe — четырёхзначный год 1900-2099 как отдельное слово.
var yearRe = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)

// splitRe — разделители: точки, пробельные символы, подчёркивания, дефисы.
var splitRe = regexp.MustCompile(`[.\s_-]+`)

// Extract возвращает упорядоченный список уникальных ключевых слов текста.
//
// Алгоритм: привести к нижнему регистру; отдельно собрать годы (чтобы год
// оставался искомым независимо от составных ключей); разбить на слова;
// каждое слово — ключ; для соседних пар, образующих атрибут качества,
// дополнительно выдать составной ключ из двух слов; в конце добавить годы
// и весь нормализованный текст целиком как catch-all ключ.
//
// Пустой вход даёт список из одной пустой строки — известная граница,
// а не ошибка: catch-all ключ присутствует всегда.
func Extract(text string) []string {
	text = strings.ToLower(text)

	years := yearRe.FindAllString(text, -1)
	words := splitRe.Split(text, -1)

	var keywords []string

	for i := 0; i < len(words); i++ {
		word := words[i]
		if word != "" {
			keywords = append(keywords, word)
		}

		// Составной ключ из пары соседних слов
		if i < len(words)-1 {
			compound := word + words[i+1]
			combined := word + " " + words[i+1]
			if matchesAttribute(compound) {
				keywords = append(keywords, combined)
				i++
			}
		}
	}

	keywords = append(keywords, years...)
	keywords = append(keywords, text)

	return dedupe(keywords)
}

// ExtractAll возвращает объединённые ключевые слова нескольких текстов
// в переданном порядке. Пустые тексты пропускаются целиком — catch-all
// ключ добавляется только для непустых. Дубликаты между текстами
// удаляются с сохранением первого вхождения.
func ExtractAll(texts ...string) []string {
	var keywords []string
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		keywords = append(keywords, Extract(text)...)
	}
	return dedupe(keywords)
}

// matchesAttribute проверяет, содержит ли склейка пары слов атрибут качества.
func matchesAttribute(compound string) bool {
	for _, attr := range qualityAttributes {
		if strings.Contains(compound, attr) {
			return true
		}
	}
	return false
}

// dedupe удаляет дубликаты, сохраняя порядок первых вхождений.
func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		result = append(result, item)
	}
	return result
}

// Normalize приводит поисковый запрос к каноническому виду:
// обрезка пробелов и нижний регистр. Используется и ранжировщиком,
// и кэшем результатов — ключи кэша и предикаты поиска никогда не расходятся.
func Normalize(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}
