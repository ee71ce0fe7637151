package deck

import (
	"regexp"
	"strings"
)

// 双面/分体牌的 " // 另一面" 后缀。
var faceSuffixRE = regexp.MustCompile(` //.*`)

// Normalize 把牌名裁剪为主面名称。
// 外部查询与 mass import 都必须使用规范化后的名字，否则供应商匹配会失败。
func Normalize(name string) string {
	return strings.TrimSpace(faceSuffixRE.ReplaceAllString(name, ""))
}

var basicLands = map[string]struct{}{
	"Plains":   {},
	"Island":   {},
	"Swamp":    {},
	"Mountain": {},
	"Forest":   {},
}

// IsBasicLand 判断是否为基本地（精确匹配）。基本地只查询主市场，不查询代理店。
func IsBasicLand(name string) bool {
	_, ok := basicLands[name]
	return ok
}
