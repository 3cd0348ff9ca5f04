package model

import "time"

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleSupport = "support"
)

type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	Role         string    `db:"role" json:"role"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

const (
	TicketOpen    = "open"
	TicketPending = "pending"
	TicketClosed  = "closed"
)

const (
	AuthorCustomer = "customer"
	AuthorStaff    = "staff"
	AuthorSystem   = "system"
)

type ChatTicket struct {
	ID            string     `db:"id" json:"id"`
	Number        string     `db:"number" json:"number"`
	CustomerName  string     `db:"customer_name" json:"customerName"`
	CustomerPhone string     `db:"customer_phone" json:"customerPhone"`
	CustomerEmail string     `db:"customer_email" json:"customerEmail"`
	Subject       string     `db:"subject" json:"subject"`
	Status        string     `db:"status" json:"status"`
	AccessToken   string     `db:"access_token" json:"-"`
	AssignedTo    string     `db:"assigned_to" json:"assignedTo"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
	ClosedAt      *time.Time `db:"closed_at" json:"closedAt,omitempty"`
}

type ChatMessage struct {
	ID         string    `db:"id" json:"id"`
	TicketID   string    `db:"ticket_id" json:"ticketId"`
	Author     string    `db:"author" json:"author"`
	AuthorName string    `db:"author_name" json:"authorName"`
	Body       string    `db:"body" json:"body"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

type TicketDetail struct {
	ChatTicket
	Messages []ChatMessage `json:"messages"`
}

// BusinessHour is the opening window of one weekday (0 = Sunday).
type BusinessHour struct {
	Weekday  int    `db:"weekday" json:"weekday"`
	OpensAt  string `db:"opens_at" json:"opensAt"`
	ClosesAt string `db:"closes_at" json:"closesAt"`
	Closed   bool   `db:"closed" json:"closed"`
}

type ContactMessage struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	Subject   string    `db:"subject" json:"subject"`
	Message   string    `db:"message" json:"message"`
	Read      bool      `db:"is_read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
