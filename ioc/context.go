package ioc

// ResolutionContext 记录当前调用栈上正在构建的定义，用于循环检测。
// 每次顶层解析创建一个，不跨 goroutine 共享。
type ResolutionContext struct {
	stack []string
	index map[string]int
}

func newResolutionContext() *ResolutionContext {
	return &ResolutionContext{index: make(map[string]int)}
}

// push 名称已在栈上时返回从首次出现开始的环路
func (rc *ResolutionContext) push(name string) error {
	if i, ok := rc.index[name]; ok {
		cycle := append([]string(nil), rc.stack[i:]...)
		return &CircularDependencyError{Cycle: cycle}
	}
	rc.index[name] = len(rc.stack)
	rc.stack = append(rc.stack, name)
	return nil
}

func (rc *ResolutionContext) pop() {
	n := len(rc.stack) - 1
	delete(rc.index, rc.stack[n])
	rc.stack = rc.stack[:n]
}

// fork 复制一份供另一个 goroutine 继续使用
func (rc *ResolutionContext) fork() *ResolutionContext {
	cp := &ResolutionContext{
		stack: append([]string(nil), rc.stack...),
		index: make(map[string]int, len(rc.index)),
	}
	for k, v := range rc.index {
		cp.index[k] = v
	}
	return cp
}

// Path 当前解析路径的快照。
func (rc *ResolutionContext) Path() []string {
	return append([]string(nil), rc.stack...)
}
