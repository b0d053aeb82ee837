package sqlinline

// QSellerStats feeds the seller console dashboard.
const QSellerStats = `--sql 0f0557a2-1731-4fc6-8cbe-8540b1d2b6df
select
  (select count(*) from orders)::bigint,
  (select count(*) from orders where status = 'pending')::bigint,
  (select count(*) from orders where status in ('paid', 'preparing', 'shipped'))::bigint,
  (select coalesce(sum(total_won), 0) from orders where status not in ('cancelled', 'refunded'))::bigint,
  (select count(*) from brand_inquiries where status = 'new')::bigint,
  (select count(*) from fitting_runs where created_at > now() - interval '24 hours')::bigint,
  (select count(*) from fitting_runs where status = 'succeeded' and created_at > now() - interval '24 hours')::bigint,
  (select count(*) from fitting_runs where status = 'failed' and created_at > now() - interval '24 hours')::bigint;
`
