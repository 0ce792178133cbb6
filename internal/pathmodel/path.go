// Package pathmodel 实现云盘虚拟文件系统的路径规则。
//
// 目录路径总是以 / 开头并以 / 结尾 (例如 /a/b/)，不含 . 和 .. 段，也不含连续的 /。
// 层级关系完全靠路径前缀表达，表里没有父子指针。
package pathmodel

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/netless-io/flat-server-sub001/internal/domain"
)

const (
	Root                   = "/"
	MaxPathLength          = 300
	MaxFileNameLength      = 128
	MaxDirectoryNameLength = 50
)

var (
	ErrInvalidPath  = errors.New("pathmodel: invalid directory path")
	ErrInvalidName  = errors.New("pathmodel: invalid name")
	ErrPathTooLong  = errors.New("pathmodel: path too long")
	ErrUnknownEntry = errors.New("pathmodel: entry not found")
)

// Length 路径长度按字符计算，与数据库 varchar 的语义一致
func Length(s string) int { return utf8.RuneCountInString(s) }

// IsNormalized 判断目录路径是否符合规范
func IsNormalized(path string) bool {
	if path == Root {
		return true
	}
	if len(path) < 3 || !strings.HasPrefix(path, "/") || !strings.HasSuffix(path, "/") {
		return false
	}
	for _, seg := range strings.Split(path[1:len(path)-1], "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

// ValidDirectoryName 目录名不能为空、不能含 /、不能是 . 或 ..
func ValidDirectoryName(name string) bool {
	return validName(name, MaxDirectoryNameLength)
}

// ValidFileName 文件名规则同目录名，但长度上限不同
func ValidFileName(name string) bool {
	return validName(name, MaxFileNameLength)
}

func validName(name string, max int) bool {
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return false
	}
	return Length(name) <= max
}

// Split 把 /a/b/c/ 拆成父目录 /a/b/ 和目录名 c。根目录不能拆分。
func Split(path string) (parent, name string, err error) {
	if path == Root || !IsNormalized(path) {
		return "", "", ErrInvalidPath
	}
	trimmed := path[:len(path)-1]
	idx := strings.LastIndex(trimmed, "/")
	return trimmed[:idx+1], trimmed[idx+1:], nil
}

// Join 拼出子目录的完整路径
func Join(parent, name string) string {
	return parent + name + "/"
}

// CheckLength 校验 父目录 + 名字 + / 的总长度
func CheckLength(parent, name string) error {
	if Length(parent)+Length(name)+1 > MaxPathLength {
		return ErrPathTooLong
	}
	return nil
}

// IsWithin path 是否等于 ancestor 或位于其下
func IsWithin(path, ancestor string) bool {
	return strings.HasPrefix(path, ancestor)
}

// PrefixMatch 返回 directory_path 以 prefix 开头的所有行，即 prefix 目录下的全部后代
func PrefixMatch(files []domain.CloudStorageFile, prefix string) []domain.CloudStorageFile {
	var result []domain.CloudStorageFile
	for _, f := range files {
		if strings.HasPrefix(f.DirectoryPath, prefix) {
			result = append(result, f)
		}
	}
	return result
}

// Change 一行的 directory_path 改写结果
type Change struct {
	FileUUID string
	From     string
	To       string
}

// Rewrite 把 files 中位于 oldPrefix 下的行改写到 newPrefix 下。
// 只替换开头的前缀，子树以外的行不会出现在结果中。
func Rewrite(files []domain.CloudStorageFile, oldPrefix, newPrefix string) []Change {
	var changes []Change
	for _, f := range files {
		if !strings.HasPrefix(f.DirectoryPath, oldPrefix) {
			continue
		}
		changes = append(changes, Change{
			FileUUID: f.FileUUID,
			From:     f.DirectoryPath,
			To:       newPrefix + strings.TrimPrefix(f.DirectoryPath, oldPrefix),
		})
	}
	return changes
}

// GroupByTarget 按新路径分组，便于按主键列表批量更新
func GroupByTarget(changes []Change) map[string][]string {
	groups := make(map[string][]string)
	for _, c := range changes {
		groups[c.To] = append(groups[c.To], c.FileUUID)
	}
	return groups
}

// MaxDescendantLength 计算目录从 oldFull 迁到 newFull 后，子树中最深条目的路径长度。
// 目录条目按 路径 + 名字 + / 计算，普通文件按 路径 + 文件名 计算。
func MaxDescendantLength(files []domain.CloudStorageFile, oldFull, newFull string) int {
	longest := Length(newFull)
	for _, f := range PrefixMatch(files, oldFull) {
		full := newFull + strings.TrimPrefix(f.DirectoryPath, oldFull) + f.FileName
		if f.IsDirectory() {
			full += "/"
		}
		if l := Length(full); l > longest {
			longest = l
		}
	}
	return longest
}

// Group 同一父目录下被选中的条目
type Group struct {
	Files []string // 普通文件的 file_uuid
	Dirs  []string // 目录的 file_uuid
}

// Aggregate 把请求的 uuid 按所在父目录分组，重复的 uuid 只保留一次。
// 任何一个 uuid 不在 files 中都视为非法请求。
func Aggregate(files map[string]domain.CloudStorageFile, uuids []string) (map[string]*Group, error) {
	seen := make(map[string]bool, len(uuids))
	groups := make(map[string]*Group)
	for _, id := range uuids {
		if seen[id] {
			continue
		}
		seen[id] = true

		f, ok := files[id]
		if !ok {
			return nil, ErrUnknownEntry
		}
		g, ok := groups[f.DirectoryPath]
		if !ok {
			g = &Group{}
			groups[f.DirectoryPath] = g
		}
		if f.IsDirectory() {
			g.Dirs = append(g.Dirs, id)
		} else {
			g.Files = append(g.Files, id)
		}
	}
	return groups, nil
}
