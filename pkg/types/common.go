// pkg/types/common.go
package types

// Digest 代表图像内容的唯一标识符 (SHA256 Hex String)
// 这是一个“值对象”，应当是不可变的。
// Digest 永远从输入字节计算得来，绝不从存储介质反推。
type Digest string

func (d Digest) String() string { return string(d) }

// 验证 Digest 合法性
func (d Digest) IsZero() bool  { return d == "" }
func (d Digest) IsValid() bool { return len(d) == 64 } // 简单的长度检查
