package run

import (
	"sync"

	"github.com/John-Robertt/jpgfromraw/internal/domain"
	"github.com/John-Robertt/jpgfromraw/internal/jpegscan"
)

type scanRequest struct {
	buf   []byte
	reply chan<- []domain.EmbeddedImage
}

// scanPool 是固定数量的扫描协程，与负责打开/写入的文件任务分开：
// 文件任务把缓冲区交给池子，阻塞等回复；同时在跑的扫描数不超过池大小。
type scanPool struct {
	jobs chan scanRequest
	wg   sync.WaitGroup
}

func newScanPool(n int) *scanPool {
	if n < 1 {
		n = 1
	}
	p := &scanPool{jobs: make(chan scanRequest)}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for req := range p.jobs {
				req.reply <- jpegscan.All(req.buf)
			}
		}()
	}
	return p
}

// Scan 扫描 buf 并返回全部区间。扫描一旦开始就会跑完，不响应取消。
func (p *scanPool) Scan(buf []byte) []domain.EmbeddedImage {
	reply := make(chan []domain.EmbeddedImage, 1)
	p.jobs <- scanRequest{buf: buf, reply: reply}
	return <-reply
}

// Close 在所有 Scan 返回之后调用。
func (p *scanPool) Close() {
	close(p.jobs)
	p.wg.Wait()
}
