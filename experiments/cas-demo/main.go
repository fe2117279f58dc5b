package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// 这是 ImageVault 动手前的最小原型：
// 验证 “SHA-256 内容寻址 + 目录分片 + 临时文件原子落盘” 这一套能不能撑起图像去重。
// 正式实现在 pkg/storage/disk，这里保留当时的探索代码。

// Store 把一张图写进内容寻址仓库，返回它的 Digest
func Store(root string, image []byte) (string, error) {
	// 1. 计算 SHA-256 —— Digest 就是图像的唯一身份，文件名、拍摄时间都不参与
	sum := sha256.Sum256(image)
	digest := hex.EncodeToString(sum[:])

	// 2. 目录分片: ab/cd/abcd....jpg
	// 单目录塞几十万个文件会把 ext4 / NFS 拖垮，取 Digest 前两级做扇出
	dir := filepath.Join(root, digest[:2], digest[2:4])
	path := filepath.Join(dir, digest+".jpg")

	// 3. 去重：同样的字节永远落在同一个路径上，存在即跳过
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("dedup hit: %s\n", digest[:12])
		return digest, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	// 4. 原子写入：先写临时文件再 rename
	// 写一半断电只会留下 tmp-*，永远不会出现半张图占着正式路径
	tmp, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(image); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	return digest, nil
}

func main() {
	root := ".imagevault-demo"

	// 模拟推理服务送来的两帧：内容相同，文件名不同
	frameA := []byte("camera01 frame 000127 (jpeg bytes)")
	frameB := []byte("camera01 frame 000127 (jpeg bytes)")

	d1, _ := Store(root, frameA)
	fmt.Printf("frame A stored. digest: %s\n", d1)

	// 第二帧应该命中去重，磁盘上只有一份
	d2, _ := Store(root, frameB)
	fmt.Printf("frame B stored. digest: %s\n", d2)

	// 看一眼 .imagevault-demo 目录，分片路径已经躺在那里了
}
