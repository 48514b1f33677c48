package devserver

import "sync"

// Presence counts live connections per username, so a user with two
// terminals open stays online until both close.
type Presence struct {
	mu     sync.Mutex
	online map[string]int
	order  []string
}

func NewPresence() *Presence {
	return &Presence{online: make(map[string]int)}
}

// Join returns true when username went from offline to online.
func (p *Presence) Join(username string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[username]++
	if p.online[username] == 1 {
		p.order = append(p.order, username)
		return true
	}
	return false
}

// Leave returns true when username's last connection closed.
func (p *Presence) Leave(username string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	count, ok := p.online[username]
	if !ok {
		return false
	}
	if count > 1 {
		p.online[username] = count - 1
		return false
	}
	delete(p.online, username)
	for i, name := range p.order {
		if name == username {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return true
}

// Online lists usernames in join order.
func (p *Presence) Online() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.order...)
}
