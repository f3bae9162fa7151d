package server

import "time"

// StartTicker 启动房间的 Tick 循环（单线程推进所有棋盘）
func (r *Room) StartTicker() {
	if r.closed.Load() || !r.tickerStarted.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.quit:
				return
			case <-ticker.C:
				start := time.Now()
				r.Tick()
				elapsed := time.Since(start)
				r.metrics.AddTick(elapsed.Nanoseconds())
				if budget := r.TickBudget(); budget > 0 && elapsed > budget {
					r.metrics.IncOverBudget()
					r.log.Warnf("tick %d over budget: %v > %v, players=%d", r.TickSeq(), elapsed, budget, len(r.slots))
				}
			}
		}
	}()
}

// Shutdown 停止 Tick 并等待循环退出，然后释放所有棋盘、关闭所有连接。
// 返回后不再有任何属于该房间的后台工作。
func (r *Room) Shutdown() {
	r.stopOnce.Do(func() {
		r.joinMu.Lock()
		r.closed.Store(true)
		r.joinMu.Unlock()
		close(r.quit)
		if r.tickerStarted.Load() {
			<-r.done
		}
		// 尚未被 Tick 接收的加入请求
	drain:
		for {
			select {
			case slot := <-r.joinChan:
				slot.Conn.Close()
			default:
				break drain
			}
		}
		for _, s := range r.slots {
			s.Board.Free()
			s.Conn.Close()
		}
		r.slots = nil
		r.pending = nil
		r.log.Infof("room shut down after %d ticks", r.TickSeq())
	})
}
