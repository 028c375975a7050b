package testhelpers

// Fixture tenants: network 1 hosts tenant 1 (wp_1_1_) and tenant 2
// (wp_1_2_). Accounts live in the shared wp_users and wp_usermeta tables.
const (
	FixtureBasePrefix = "wp_"
	FixtureNetworkID  = 1
	FixtureTenantID   = 1
	OtherTenantID     = 2

	// FixturePublishedPosts is the number of published posts owned by tenant 1.
	FixturePublishedPosts = 3
	// FixtureLegacyOrders is the number of shop_order posts owned by tenant 1.
	FixtureLegacyOrders = 2
)

var fixtureStatements = []string{
	`CREATE TABLE wp_users (
		ID BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_login VARCHAR(60) NOT NULL,
		user_pass VARCHAR(255) NOT NULL,
		user_email VARCHAR(100) NOT NULL,
		user_registered DATETIME NOT NULL,
		display_name VARCHAR(250) NOT NULL
	)`,
	`CREATE TABLE wp_usermeta (
		umeta_id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		meta_key VARCHAR(255),
		meta_value LONGTEXT
	)`,
	`INSERT INTO wp_users (ID, user_login, user_pass, user_email, user_registered, display_name) VALUES
		(1, 'ada', '$P$Bhashedpassword1', 'ada@example.com', '2024-01-05 10:00:00', 'Ada Lovelace'),
		(2, 'grace', '$P$Bhashedpassword2', 'grace@example.com', '2024-02-11 09:30:00', 'Grace Hopper')`,
	`INSERT INTO wp_usermeta (user_id, meta_key, meta_value) VALUES
		(1, 'first_name', 'Ada'), (1, 'last_name', 'Lovelace'),
		(2, 'first_name', 'Grace'), (2, 'last_name', 'Hopper')`,

	`CREATE TABLE wp_1_1_posts (
		ID BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		post_author BIGINT UNSIGNED NOT NULL DEFAULT 0,
		post_date DATETIME NOT NULL,
		post_title TEXT NOT NULL,
		post_status VARCHAR(20) NOT NULL DEFAULT 'publish',
		post_type VARCHAR(20) NOT NULL DEFAULT 'post'
	)`,
	`CREATE TABLE wp_1_1_postmeta (
		meta_id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		post_id BIGINT UNSIGNED NOT NULL,
		meta_key VARCHAR(255),
		meta_value LONGTEXT
	)`,
	`INSERT INTO wp_1_1_posts (ID, post_author, post_date, post_title, post_status, post_type) VALUES
		(10, 1, '2024-03-01 08:00:00', 'Hello World', 'publish', 'post'),
		(11, 1, '2024-03-08 08:00:00', 'Spring Sale', 'publish', 'post'),
		(12, 2, '2024-03-15 08:00:00', 'Summer Launch', 'publish', 'post'),
		(13, 2, '2024-03-20 08:00:00', 'Unfinished Thoughts', 'draft', 'post'),
		(20, 1, '2024-03-02 12:00:00', 'Blue Mug', 'publish', 'product'),
		(30, 1, '2024-03-03 14:00:00', 'Order #30', 'wc-completed', 'shop_order'),
		(31, 2, '2024-03-04 15:00:00', 'Order #31', 'wc-processing', 'shop_order')`,
	`INSERT INTO wp_1_1_postmeta (post_id, meta_key, meta_value) VALUES
		(30, '_order_total', '59.90'), (30, '_customer_user', '1'),
		(31, '_order_total', '12.00'), (31, '_customer_user', '2')`,

	`CREATE TABLE wp_1_2_posts (
		ID BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		post_author BIGINT UNSIGNED NOT NULL DEFAULT 0,
		post_date DATETIME NOT NULL,
		post_title TEXT NOT NULL,
		post_status VARCHAR(20) NOT NULL DEFAULT 'publish',
		post_type VARCHAR(20) NOT NULL DEFAULT 'post'
	)`,
	`INSERT INTO wp_1_2_posts (ID, post_date, post_title) VALUES
		(1, '2024-03-01 08:00:00', 'Other Tenant Post')`,
}
