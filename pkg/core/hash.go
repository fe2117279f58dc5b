package core

import (
	"crypto/sha256"
	"encoding/hex"

	"imagevault/pkg/types"
)

// DigestOf 计算原始图像字节的 Digest
// 纯函数：相同的字节永远产生相同的 Digest，跨进程重启也稳定
// 这是整个 CAS 的唯一身份来源
func DigestOf(data []byte) types.Digest {
	hashBytes := sha256.Sum256(data)
	return types.Digest(hex.EncodeToString(hashBytes[:]))
}
