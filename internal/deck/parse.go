package deck

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/John-Robertt/deckprice/internal/domain"
)

// 一行牌表：数量 + 空白 + 牌名（牌名取行内剩余部分，可以包含标点与 "//"）。
var lineRE = regexp.MustCompile(`^(\d+)\s+(.*)$`)

// ParseLine 解析一行牌表。
// 不匹配的行返回 ok=false（静默跳过，不是错误）；数量为 0 或牌名为空同样视为不匹配。
func ParseLine(line string) (domain.CardRequest, bool) {
	m := lineRE.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return domain.CardRequest{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return domain.CardRequest{}, false
	}
	name := strings.TrimSpace(m[2])
	if name == "" {
		return domain.CardRequest{}, false
	}
	return domain.CardRequest{Name: name, Quantity: n}, true
}

// ProcessLine 把一行展开为按数量重复的牌名序列；不匹配的行返回空切片。
func ProcessLine(line string) []string {
	req, ok := ParseLine(line)
	if !ok {
		return []string{}
	}
	return Expand([]domain.CardRequest{req})
}

// ParseRequests 逐行读取牌表，返回匹配行对应的 CardRequest（保持输入顺序，不去重）。
func ParseRequests(r io.Reader) ([]domain.CardRequest, error) {
	out := make([]domain.CardRequest, 0, 64)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if req, ok := ParseLine(sc.Text()); ok {
			out = append(out, req)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Expand 把 CardRequest 展开为扁平的牌名序列：每个牌名重复 Quantity 次。
func Expand(reqs []domain.CardRequest) []string {
	total := 0
	for _, r := range reqs {
		total += r.Quantity
	}
	out := make([]string, 0, total)
	for _, r := range reqs {
		for i := 0; i < r.Quantity; i++ {
			out = append(out, r.Name)
		}
	}
	return out
}

// Parse 读取牌表并返回扁平的牌名序列。
func Parse(r io.Reader) ([]string, error) {
	reqs, err := ParseRequests(r)
	if err != nil {
		return nil, err
	}
	return Expand(reqs), nil
}

// ReadFile 读取牌表文件。文件无法打开/读取属于启动失败，由调用方中止运行。
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开牌表失败：%w", err)
	}
	defer f.Close()

	names, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("读取牌表失败 %q：%w", path, err)
	}
	return names, nil
}
