package shop

import "strings"

var queryReplacer = strings.NewReplacer(",", " ", "&", " ") //nolint:gochecknoglobals

// QueryFilter 把牌名中的 `,` 与 `&` 替换为空格：店铺搜索会把它们当作分隔符或直接报错。
func QueryFilter(name string) string {
	return queryReplacer.Replace(name)
}

// MatchKey 返回用于匹配的键：小写、`,`/`&` 视为空格、连续空白折叠为一个空格。
func MatchKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(QueryFilter(s))), " ")
}

// Matches 判断商品标题是否对应该牌名（键的包含关系）。
func Matches(name, title string) bool {
	k := MatchKey(name)
	if k == "" {
		return false
	}
	return strings.Contains(MatchKey(title), k)
}
