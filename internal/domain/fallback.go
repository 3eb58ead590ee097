package domain

// FallbackCatalog is a fixed, ordered set of quotes used when no other
// source can produce one.
//
// The catalog is append-only: a date's catalog index is derived from a hash
// of the date string, so reordering or removing entries would silently change
// the quote shown for dates that were already resolved. New quotes go at the
// end, never in the middle.
type FallbackCatalog []Quote

// FallbackIndex computes the stable catalog index for a date string.
//
// The hash is the classic polynomial string hash (h = h*31 + ch) truncated to
// a signed 32-bit integer, absolute value, modulo the catalog length. The same
// date string always yields the same index for a catalog of the same length.
func FallbackIndex(date string, n int) int {
	if n <= 0 {
		return 0
	}

	var h int32
	for _, r := range date {
		h = h*31 + int32(r)
	}

	// Widen before negating: -math.MinInt32 does not fit in 32 bits.
	idx := int64(h)
	if idx < 0 {
		idx = -idx
	}

	return int(idx % int64(n))
}

// Select returns the catalog entry for the given date, with the date attached.
// Pure and deterministic; never fails for a non-empty catalog.
func (c FallbackCatalog) Select(date string) Quote {
	return c[FallbackIndex(date, len(c))].WithDate(date)
}

// DefaultFallbackCatalog returns the built-in quote catalog.
// Returned as a fresh slice so callers cannot mutate the package state.
func DefaultFallbackCatalog() FallbackCatalog {
	catalog := make(FallbackCatalog, len(defaultFallbackQuotes))
	copy(catalog, defaultFallbackQuotes)

	return catalog
}

var defaultFallbackQuotes = []Quote{
	{Message: "성공은 실패를 거듭한 끝에 찾아온다.", Author: "한국 속담", AuthorProfile: "전통 지혜"},
	{Message: "시작이 반이다.", Author: "한국 속담", AuthorProfile: "전통 지혜"},
	{Message: "천 리 길도 한 걸음부터.", Author: "한국 속담", AuthorProfile: "전통 지혜"},
	{Message: "오늘의 나를 만든 것은 어제의 선택이다.", Author: "현대 명언", AuthorProfile: "자기계발"},
	{Message: "꿈을 꾸지 않으면 현실을 바꿀 수 없다.", Author: "현대 명언", AuthorProfile: "영감"},
	{Message: "가장 어두운 밤이 지나면 새벽이 온다.", Author: "한국 속담", AuthorProfile: "전통 지혜"},
	{Message: "물방울이 바위를 뚫는다.", Author: "한국 속담", AuthorProfile: "전통 지혜"},
	{Message: "행복은 선택이다.", Author: "현대 명언", AuthorProfile: "긍정적 사고"},
	{Message: "지금 이 순간이 가장 중요하다.", Author: "현대 명언", AuthorProfile: "현재에 집중"},
	{Message: "노력하는 자에게 길은 열린다.", Author: "한국 속담", AuthorProfile: "전통 지혜"},
	{Message: "작은 변화가 큰 결과를 만든다.", Author: "현대 명언", AuthorProfile: "성장 마인드셋"},
	{Message: "실패는 성공의 어머니다.", Author: "한국 속담", AuthorProfile: "전통 지혜"},
	{Message: "감사하는 마음이 행복을 부른다.", Author: "현대 명언", AuthorProfile: "감사"},
	{Message: "인내는 쓰지만 그 열매는 달다.", Author: "한국 속담", AuthorProfile: "전통 지혜"},
	{Message: "오늘 하루를 최선을 다해 살아보자.", Author: "현대 명언", AuthorProfile: "일상의 지혜"},
	{Message: "마음이 바뀌면 행동이 바뀐다.", Author: "현대 명언", AuthorProfile: "변화"},
	{Message: "고생 끝에 낙이 온다.", Author: "한국 속담", AuthorProfile: "전통 지혜"},
	{Message: "배움에는 끝이 없다.", Author: "현대 명언", AuthorProfile: "평생학습"},
	{Message: "희망을 잃지 말고 꿈을 향해 나아가자.", Author: "현대 명언", AuthorProfile: "희망"},
	{Message: "내일의 성공은 오늘의 준비에 달려있다.", Author: "현대 명언", AuthorProfile: "준비"},
}
