// Package mainthread funnels callbacks onto one loop goroutine. Callers get
// an Item back and block on its completion channel; nothing polls.
package mainthread
